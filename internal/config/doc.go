// Package config loads the configuration of the statelift command.
//
// Settings are read from statelift.json, then overridden by STATELIFT_*
// environment variables:
//
//	{
//	  "store": {"name": "rows", "strict": false, "maxFlush": 10000},
//	  "bench": {"rows": 1000, "lotsRows": 10000, "iterations": 5},
//	  "inspector": {"addr": "127.0.0.1:7070", "interval": "250ms"},
//	  "upload": {"target": "s3://reports/statelift", "region": "eu-west-1"},
//	  "telemetry": {"otlpEndpoint": "localhost:4318", "insecure": true},
//	  "log": {"level": "info", "format": "text"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Rows:", cfg.Bench.Rows)
package config
