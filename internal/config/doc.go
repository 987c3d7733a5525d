// Package config loads the ripple.json file used by the ripple command.
//
// # Configuration File Structure
//
//	{
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "inspect": {
//	    "enabled": true,
//	    "addr": "localhost:7070"
//	  },
//	  "metrics": {
//	    "namespace": "ripple"
//	  },
//	  "async": {
//	    "strategy": "abort",
//	    "debounce": "100ms"
//	  },
//	  "persist": {
//	    "backend": "s3",
//	    "bucket": "my-state",
//	    "prefix": "ripple/"
//	  }
//	}
//
// Missing sections take their defaults. RIPPLE_INSPECT_ADDR and
// RIPPLE_LOG_LEVEL override the file.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
