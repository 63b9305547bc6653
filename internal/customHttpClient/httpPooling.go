package customHttpClient

import (
	"net/http"

	"github.com/vharia/threatlens/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// PooledClient is shared by the HTTP-speaking embedding providers so repeated
// calls against the same endpoint reuse connections.
func PooledClient() *http.Client {
	return &http.Client{Transport: customTransport}
}
