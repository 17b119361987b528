// Package config provides centralized configuration management for seriesdash.
// It loads configuration from the environment and a YAML file, validates it,
// and resolves the directories the application reads from and writes to.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables that are explicitly set (highest priority)
//  2. The YAML configuration file
//  3. Default values (lowest priority)
//
// Datasets are only read from the file.
//
// # Environment Variables
//
// All environment variables follow the pattern SERIESDASH_* for namespacing:
//
//	SERIESDASH_CONFIG=/etc/seriesdash.yaml
//	SERIESDASH_SERVER_PORT=8080
//	SERIESDASH_LOGGING_LEVEL=debug
//	SERIESDASH_TELEMETRY_TRACES_EXPORTER=stdout
//
// # Datasets
//
//	datasets:
//	  - name: tw-prices
//	    kind: csv
//	    path: stock_prices_with_news.csv
//	    columns: {id: 股票代號, date: 日期, value: 收盤價, annotation: Event}
//	  - name: houses
//	    kind: sqlite
//	    path: house.db
//	    table: sale_house_record
//	    date_encoding: roc
//	    columns: {id: 建案名稱, date: 交易年月日, value: 單價元坪}
//	    selectable: [交易標的, 建物型態]
//	    derived:
//	      - {source: 單價元平方公尺, target: 單價元坪, factor: 3.3058}
//
// # Path Management
//
// Relative directories resolve against paths.base_dir, or the executable
// directory when unset:
//
//	paths, err := config.ResolvePaths(cfg.Paths)
//	exportPath := paths.GetExportPath("prices.csv")
package config
