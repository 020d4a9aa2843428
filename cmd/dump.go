package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/devopsext/proflog/common"
	"github.com/devopsext/proflog/config"
	"github.com/spf13/cobra"
)

type DumpOptions struct {
	Strict  bool
	Timeout time.Duration
}

var dumpOptions = DumpOptions{
	Timeout: 5 * time.Second,
}

func newDumpCmd() *cobra.Command {

	dumpCmd := &cobra.Command{
		Use:   "dump [socket]",
		Short: "Print the counters snapshot served on an admin socket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				_, cfg, err := config.Load(rootOptions.Config, cmd.Flags())
				if err != nil {
					return err
				}
				path = cfg.AdminSocket.Path
			}
			if common.IsEmpty(path) {
				return fmt.Errorf("no admin socket given")
			}

			data, err := readSnapshot(path, dumpOptions.Timeout)
			if err != nil {
				return err
			}
			if dumpOptions.Strict {
				if data, err = strictSnapshot(data); err != nil {
					return err
				}
			}

			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		},
	}

	flags := dumpCmd.Flags()
	flags.BoolVar(&dumpOptions.Strict, "strict", dumpOptions.Strict, "Convert the snapshot to indented strict JSON")
	flags.DurationVar(&dumpOptions.Timeout, "timeout", dumpOptions.Timeout, "Dial and read timeout")
	return dumpCmd
}

// readSnapshot reads one document; the server closes the connection after it.
func readSnapshot(path string, timeout time.Duration) ([]byte, error) {

	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	return io.ReadAll(conn)
}

var nonFinite = [][]byte{[]byte("NaN"), []byte("+Inf"), []byte("-Inf")}

// jsonTokens rewrites the parts of a format 1 document JSON has no syntax for:
// Go escapes in names and non-finite floats, which become null.
func jsonTokens(data []byte) []byte {

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {

		if data[i] == '"' {
			end := i + 1
			for end < len(data) && data[end] != '"' {
				if data[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(data) {
				return append(out, data[i:]...)
			}
			token := data[i : end+1]
			if name, err := strconv.Unquote(string(token)); err == nil {
				if quoted, err := json.Marshal(name); err == nil {
					token = quoted
				}
			}
			out = append(out, token...)
			i = end + 1
			continue
		}

		replaced := false
		for _, nf := range nonFinite {
			if bytes.HasPrefix(data[i:], nf) {
				out = append(out, "null"...)
				i += len(nf)
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, data[i])
			i++
		}
	}
	return out
}

// strictSnapshot converts a format 1 document to indented strict JSON.
func strictSnapshot(data []byte) ([]byte, error) {

	data = jsonTokens(bytes.TrimSpace(data))
	if n := len(data); n >= 2 && data[n-1] == '}' {
		body := bytes.TrimRight(data[:n-1], " \t\r\n")
		if len(body) > 0 && body[len(body)-1] == ',' {
			data = append(body[:len(body)-1:len(body)-1], '}')
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	return out.Bytes(), nil
}
