package httpclient

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURLSchemes(t *testing.T) {
	c := New(10*time.Second, Options{})

	_, err := c.ValidateURL("https://api.example.com/v1")
	assert.NoError(t, err)

	_, err = c.ValidateURL("ftp://api.example.com/v1")
	assert.Error(t, err)

	_, err = c.ValidateURL("file:///etc/passwd")
	assert.Error(t, err)
}

func TestValidateURLBlocksLocalhost(t *testing.T) {
	c := New(10*time.Second, Options{})

	for _, u := range []string{
		"http://localhost:11434/api",
		"http://127.0.0.1:8080/",
		"http://10.0.0.5/",
		"http://192.168.1.1/",
		"http://169.254.169.254/latest/meta-data/",
	} {
		_, err := c.ValidateURL(u)
		assert.Error(t, err, "expected %s to be blocked", u)
	}
}

func TestValidateURLAllowPrivate(t *testing.T) {
	c := New(10*time.Second, Options{AllowPrivate: true})

	_, err := c.ValidateURL("http://localhost:11434/api")
	assert.NoError(t, err)

	_, err = c.ValidateURL("http://127.0.0.1:8080/")
	assert.NoError(t, err)
}

func TestValidateURLBlocksUserinfo(t *testing.T) {
	c := New(10*time.Second, Options{})

	_, err := c.ValidateURL("http://evil.com@example.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userinfo")
}

func TestIsBlockedIP(t *testing.T) {
	blocked := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1", "169.254.1.1", "0.0.0.0", "::1", "fe80::1"}
	for _, s := range blocked {
		assert.True(t, isBlockedIP(net.ParseIP(s)), "expected %s blocked", s)
	}

	allowed := []string{"8.8.8.8", "104.18.2.115", "2606:4700::6812:273"}
	for _, s := range allowed {
		assert.False(t, isBlockedIP(net.ParseIP(s)), "expected %s allowed", s)
	}
}
