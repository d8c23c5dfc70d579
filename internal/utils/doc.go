// Package utils exposes infrastructure shared by the glisse commands.
//
// ConfigurationLoader layers embedded defaults, configuration files, and
// environment variables through Viper. LoggerFactory builds zap loggers with an
// optional rotating log file. CommandContextAccessor carries values resolved by
// the root command into subcommands.
package utils
