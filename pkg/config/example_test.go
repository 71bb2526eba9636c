package config_test

import (
	"fmt"
	"log"

	"github.com/thetechidea/beepdatasources/pkg/config"
)

// ExampleNewDataSourceConfig demonstrates the defaults of a new data source.
func ExampleNewDataSourceConfig() {
	cfg := config.NewDataSourceConfig("sales", "postgres")

	fmt.Printf("Param prefix: %s\n", cfg.ParamPrefix)
	fmt.Printf("Default page size: %d\n", cfg.Paging.DefaultPageSize)
	fmt.Printf("Connection timeout: %s\n", cfg.Timeouts.Connection)

	// Output:
	// Param prefix: @
	// Default page size: 50
	// Connection timeout: 10s
}

// ExampleDataSourceConfig_Validate shows validation before opening a data source.
func ExampleDataSourceConfig_Validate() {
	cfg := config.NewDataSourceConfig("sales", "sqlserver")
	cfg.JoinHint = "or"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	cfg.ParamPrefix = "#"
	fmt.Println(cfg.Validate())

	// Output:
	// Configuration is valid!
	// param_prefix must be one of @ : $ ?, got "#"
}

// ExamplePagingConfig_ClampPage shows how out of range page requests are normalized.
func ExamplePagingConfig_ClampPage() {
	cfg := config.NewDataSourceConfig("sales", "mysql")

	fmt.Println(cfg.Paging.ClampPage(0, 0))
	fmt.Println(cfg.Paging.ClampPage(3, 5000))

	// Output:
	// 1 50
	// 3 2000
}
