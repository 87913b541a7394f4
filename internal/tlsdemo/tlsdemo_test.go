package tlsdemo

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCertificate(t *testing.T) {
	cfg, err := Config("", "")
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyHostname("localhost"))
}

func TestCertificateFiles(t *testing.T) {
	dir := t.TempDir()
	crt := filepath.Join(dir, "c.pem")
	key := filepath.Join(dir, "k.pem")
	require.NoError(t, os.WriteFile(crt, demoCert, 0o600))
	require.NoError(t, os.WriteFile(key, demoKey, 0o600))

	cfg, err := Config(crt, key)
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)

	_, err = Config(crt, "")
	assert.Error(t, err)

	_, err = Config(filepath.Join(dir, "missing"), key)
	assert.Error(t, err)
}
