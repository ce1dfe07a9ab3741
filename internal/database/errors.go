package database

import "github.com/pkg/errors"

var ErrBuildQuery = errors.New("failed to build query")
