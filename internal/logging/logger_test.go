package logging_test

import (
	"testing"

	"blackcat-storefront/internal/config"
	"blackcat-storefront/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestGetLogger_Local(t *testing.T) {
	logger := logging.GetLogger(config.Logs{})
	assert.NotNil(t, logger)
}

func TestGetLogger_FallsBackOnBadURL(t *testing.T) {
	logger := logging.GetLogger(config.Logs{URL: "://not a url"})
	assert.NotNil(t, logger)
}
