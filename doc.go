// Package beepdatasources is a generic data-access core for relational
// databases. It discovers tables and views, caches their structures and reads
// them as filtered streams or counted pages, across Postgres, MySQL, SQL
// Server, SQLite, Oracle, DB2, Firebird, Snowflake and DuckDB dialects.
//
// # Quick Start
//
//	import (
//	    "github.com/thetechidea/beepdatasources/pkg/config"
//	    "github.com/thetechidea/beepdatasources/pkg/datasource"
//	    "github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
//	)
//
//	cfg := config.NewDataSourceConfig("sales", "postgres")
//	cfg.DSN = "postgres://localhost/sales"
//
//	ds, err := datasource.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer ds.Close()
//
//	page, err := ds.GetEntityPaged(ctx, "orders", []filter.Filter{
//	    {FieldName: "status", Operator: "=", FilterValue: "shipped"},
//	}, 1, 100)
//
//	for rec, err := range ds.GetEntity(ctx, "orders", nil) {
//	    ...
//	}
//
// # Key Packages
//
//	pkg/datasource          - Data source facade and driver registry
//	pkg/rdbms/dbtype        - Semantic type names to parameter types
//	pkg/rdbms/filter        - Filter criteria and parameter binding
//	pkg/rdbms/querybuilder  - WHERE merging and count queries
//	pkg/rdbms/dialect       - Pagination and placeholder styles per dialect
//	pkg/rdbms/command       - Command abstraction over database/sql
//	pkg/rdbms/cache         - Entity structure cache
//	pkg/rdbms/stream        - Lazy row streaming
//	pkg/rdbms/paging        - Paged query executor
//	pkg/export              - JSON and Avro export with compression
//	pkg/config              - Data source configuration
//	pkg/errors              - Structured error handling and error info
//	pkg/logger              - Structured logging
//	pkg/metrics             - Prometheus metrics
//	pkg/observability       - OpenTelemetry tracing
//
// # Command Line
//
//	beepdata --dialect sqlite --dsn shop.db entities
//	beepdata --dialect sqlite --dsn shop.db query orders -f "status = shipped" --size 20
//	beepdata -c sales.yaml export orders --format avro --compression snappy -o orders.avro
//
// Configuration is read from YAML, flags and BEEP_* environment variables.
// A .env file in the working directory is loaded first.
package beepdatasources
