// Package config provides configuration for RDBMS data sources.
//
// A single DataSourceConfig describes the dialect, driver and DSN of a
// database together with the settings consumed by the paging executor,
// the structure cache and the connection pool.
//
// # Loading
//
//	cfg, err := config.LoadDataSource("sales.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
// Values of the form ${VAR_NAME} are replaced with the environment value
// before the YAML is decoded. ${VAR_NAME:-default} supplies a fallback:
//
//	name: sales
//	dialect: postgres
//	dsn: postgres://${PGUSER}:${PGPASSWORD}@${PGHOST:-localhost}/sales
//	paging:
//	  default_page_size: 100
//	cache:
//	  structure_ttl: 10m
//
// The CLI reads the same structure through viper, so every key can also be
// given as a BEEP_* environment variable or a command line flag.
package config
