// Package types provides core types used across the cookrag pipeline.
// This package has ZERO dependencies on other cookrag packages to avoid
// circular imports. All other packages should import types from here.
package types
