// Package config provides configuration parsing for lens.
//
// The configuration is stored in lens.json. Every field has a default, so
// the file is optional; environment variables override the file and
// command-line flags override both.
//
// # Configuration File Structure
//
//	{
//	  "endpoint": {
//	    "url": "ws://10.104.18.28:80/ws",
//	    "discover": false,
//	    "service": "_lens._tcp"
//	  },
//	  "connection": {
//	    "sendPolicy": "queue",
//	    "maxQueue": 16,
//	    "dialTimeout": "10s"
//	  },
//	  "upload": { "maxFileSize": 10485760 },
//	  "gallery": { "capacity": 50 },
//	  "ui": { "host": "localhost", "port": 3000 },
//	  "archive": { "kind": "disk", "dir": "received" },
//	  "metrics": { "enabled": true, "path": "/metrics" }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyEnv(os.LookupEnv)
//
//	fmt.Println("Endpoint:", cfg.Endpoint.URL)
package config
