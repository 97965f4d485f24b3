// Package page wires a connection, an object URL registry and a gallery
// into the upload-and-display client.
//
// Submitting sends the first selected file as exactly one binary frame.
// Every binary message received becomes exactly one gallery entry, in
// receipt order:
//
//	p := page.New(page.Options{Gallery: gallery.New(50, blobs), Blobs: blobs})
//	c := p.Connect(ctx, conn.DefaultConfig("ws://10.104.18.28:80/ws"))
//	defer p.Close()
//
//	up, err := p.Submit(ctx, []page.File{page.FileFromPath("cat.png")})
//
// A Page never sends on its own; the only outbound frames are those
// issued by Submit.
package page
