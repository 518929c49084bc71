// Package config provides configuration parsing for the cells server.
//
// The configuration is stored in cells.json. Fields missing from the file
// keep their defaults, and command-line flags override both.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "address": ":8080",
//	    "watchBuffer": 64,
//	    "shutdownTimeout": "10s"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "cells",
//	    "path": "/metrics"
//	  },
//	  "tracing": {
//	    "enabled": false,
//	    "tracerName": "cells"
//	  },
//	  "runtime": {
//	    "maxDepth": 0
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Address:", cfg.Server.Address)
//
// Watch reloads the file whenever it changes on disk:
//
//	err := config.Watch(ctx, cfg.Path(), func(cfg *config.Config, err error) {
//	    if err == nil {
//	        levelVar.Set(cfg.SlogLevel())
//	    }
//	})
package config
