package server

import (
	"testing"

	"rewardvault/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":0",
		"8080":           ":8080",
		":8080":          ":8080",
		"127.0.0.1:9000": "127.0.0.1:9000",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeAddr(in), in)
	}
}

func TestNewHttpServer(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "8080"

	srv, err := NewHttpServer(Params{Config: cfg, Handler: gin.New()})
	require.NoError(t, err)
	require.Equal(t, ":8080", srv.Addr())
	require.Nil(t, srv.server.TLSConfig)
}

func TestNewHttpServerMissingCert(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = ":8443"
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = t.TempDir() + "/missing.crt"
	cfg.TLS.KeyPath = t.TempDir() + "/missing.key"

	_, err := NewHttpServer(Params{Config: cfg, Handler: gin.New()})
	require.Error(t, err)
}
