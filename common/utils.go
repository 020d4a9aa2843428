package common

import (
	"net"
	"net/http"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/rs/xid"
)

func IsEmpty(s string) bool {
	s1 := strings.TrimSpace(s)
	return len(s1) == 0
}

func MakeHttpClient(timeout int) *http.Client {

	var transport = &http.Transport{
		Dial:                (&net.Dialer{Timeout: time.Duration(timeout) * time.Second}).Dial,
		TLSHandshakeTimeout: time.Duration(timeout) * time.Second,
	}

	var client = &http.Client{
		Timeout:   time.Duration(timeout) * time.Second,
		Transport: transport,
	}

	return client
}

func getLastPath(s string, limit int) string {

	index := 0
	dir := s
	var arr []string

	for !IsEmpty(dir) {
		if index >= limit {
			break
		}
		index++
		arr = append([]string{path.Base(dir)}, arr...)
		dir = path.Dir(dir)
	}
	return path.Join(arr...)
}

func GetCallerInfo(offset int) (string, string, int) {

	pc := make([]uintptr, 15)
	n := runtime.Callers(offset, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()

	function := getLastPath(frame.Function, 1)
	file := getLastPath(frame.File, 3)
	line := frame.Line

	return function, file, line
}

func GetGuid() string {
	guid := xid.New()
	return guid.String()
}

// GetKeyValues parses "k1=v1,k2=v2" into a map. Empty items are skipped,
// an item without "=" maps to an empty value.
func GetKeyValues(s string) map[string]string {

	m := make(map[string]string)
	for _, item := range strings.Split(s, ",") {

		item = strings.TrimSpace(item)
		if IsEmpty(item) {
			continue
		}
		kv := strings.SplitN(item, "=", 2)
		key := strings.TrimSpace(kv[0])
		if IsEmpty(key) {
			continue
		}
		value := ""
		if len(kv) > 1 {
			value = strings.TrimSpace(kv[1])
		}
		m[key] = value
	}
	return m
}

// SanitizeName joins parts with "_" and replaces every character outside
// [a-zA-Z0-9_:] so the result is a valid Prometheus metric name.
func SanitizeName(parts ...string) string {

	var names []string
	for _, p := range parts {
		if !IsEmpty(p) {
			names = append(names, p)
		}
	}

	name := []byte(strings.Join(names, "_"))
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == ':':
		case c >= '0' && c <= '9':
			if i == 0 {
				name[i] = '_'
			}
		default:
			name[i] = '_'
		}
	}
	return string(name)
}
