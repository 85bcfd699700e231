package util

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b", "out.png")
	require.NoError(t, WriteFile(p, []byte("one")))
	require.NoError(t, WriteFile(p, []byte("two")))

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestGetBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	data, ct, err := GetBytes(context.Background(), srv.Client(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, "image/png", ct)

	_, _, err = GetBytes(context.Background(), nil, srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestPublicIP(t *testing.T) {
	for _, addr := range []string{"127.0.0.1", "10.0.0.8", "192.168.1.1", "172.16.4.4", "169.254.169.254", "0.0.0.0", "::1", "fe80::1", "fd00::1", "::ffff:127.0.0.1"} {
		assert.False(t, PublicIP(net.ParseIP(addr)), addr)
	}
	for _, addr := range []string{"93.184.216.34", "8.8.8.8", "2606:4700::1111"} {
		assert.True(t, PublicIP(net.ParseIP(addr)), addr)
	}
	assert.False(t, PublicIP(nil))
}

func TestPublicClientRefusesLoopback(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	_, _, err := GetBytes(context.Background(), NewPublicClient(time.Second), srv.URL+"/a.png")
	assert.ErrorIs(t, err, ErrBlockedAddress)
	assert.False(t, hit)
}
