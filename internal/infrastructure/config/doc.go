// Package config loads backend configuration from the environment.
//
// Every field carries an envconfig tag and a default, so an empty
// environment yields a runnable configuration. Values envconfig cannot
// constrain (enumerations) are checked by Validate.
package config
