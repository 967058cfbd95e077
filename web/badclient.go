package web

import (
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// when someone scans the server for vulnerabilities, send them 200 response
// with html followed by random binary data.
// the urls come from observing attacks on websites

var (
	badClientsExact = map[string]bool{
		"/images/":                               true,
		"/files/":                                true,
		"/uploads/":                              true,
		"/admin/controller/extension/extension/": true,
		"/sites/default/files/":                  true,
		"/.well-known/":                          true,
	}
	badClientsContains = []string{
		"/wp-login.php",
		"/wp-includes/wlwmanifest.xml",
		"/xmlrpc.php",
		"/wp-admin",
		"/wp-content/",
		".env",
		".git/",
		"id_rsa",
		"id_dsa",
		"/etc/passwd",
		"phpmyadmin",
	}
	badClientsPrefix = []string{
		"/plus/",
		"/index.php",
		"/cgi-bin/",
		"/?-",
		"/index?-",
	}
	badClientsSuffix = []string{
		".bak",
		".sql",
		".key",
		".pem",
		".sqlite",
		".db",
	}
	badClientsRandomData []byte
)

func init() {
	// starts with valid html to trick parsers into reading the random data
	d := make([]byte, 0, 1024)
	d = append(d, []byte("<html><body>nothing to see here...")...)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := len(d); i < cap(d); i++ {
		d = append(d, byte(rnd.Intn(256)))
	}
	badClientsRandomData = d
}

func isBadClient(uri string) bool {
	uri = strings.ToLower(uri)
	if badClientsExact[uri] {
		return true
	}
	for _, s := range badClientsSuffix {
		if strings.HasSuffix(uri, s) {
			return true
		}
	}
	for _, s := range badClientsPrefix {
		if strings.HasPrefix(uri, s) {
			return true
		}
	}
	for _, s := range badClientsContains {
		if strings.Contains(uri, s) {
			return true
		}
	}
	return false
}

// tryServeBadClient returns true if it sent a response to the client
func tryServeBadClient(w http.ResponseWriter, r *http.Request) bool {
	if !isBadClient(r.URL.Path) {
		return false
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write(badClientsRandomData)
	return true
}
