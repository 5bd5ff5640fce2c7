// Package config loads the settings of plugdi tools and applications: the
// roots and packages the plugin registry reads, and the logger.
//
// Files are YAML (.yaml, .yml) or TOML (.toml). Environment variables
// prefixed with PLUGDI_ override file values:
//
//	PLUGDI_LOG_LEVEL        log.level
//	PLUGDI_LOG_FORMAT       log.format
//	PLUGDI_DEFAULT_PACKAGE  registry.default_package
//	PLUGDI_PACKAGES         registry.packages (comma separated)
//	PLUGDI_BUILTIN          registry.builtin
package config
