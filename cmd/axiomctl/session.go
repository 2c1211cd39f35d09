package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/layer-3/axiom/siweclient"
	transport "github.com/layer-3/axiom/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the server's view of the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(newLogger())
		if err != nil {
			return err
		}

		info, err := client.Session(cmd.Context(), true)
		if err != nil {
			return err
		}
		if !info.Authenticated {
			fmt.Println("Not signed in")
			return nil
		}
		fmt.Printf("Address:          %s\n", info.Address)
		fmt.Printf("Chain ID:         %d\n", info.ChainID)
		fmt.Printf("Authenticated at: %s\n", info.AuthenticatedAt.Format(time.RFC3339))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(newLogger())
		if err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(viper.GetString("session-file")); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "failed to remove session file: %v\n", err)
			}
		}()

		if err := client.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

// newClient builds a client whose cookie jar is seeded from the session file
func newClient(log *zap.Logger) (*siweclient.Client, error) {
	client, err := siweclient.New(viper.GetString("server"), siweclient.WithLogger(log))
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(viper.GetString("session-file"))
	if errors.Is(err, os.ErrNotExist) {
		return client, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token != "" {
		client.HTTPClient().Jar.SetCookies(serverURL(), []*http.Cookie{{
			Name:  transport.SessionCookie,
			Value: token,
			Path:  "/",
		}})
	}
	return client, nil
}

// saveSession writes the session cookie the server set on client
func saveSession(client *siweclient.Client) error {
	for _, c := range client.HTTPClient().Jar.Cookies(serverURL()) {
		if c.Name != transport.SessionCookie {
			continue
		}
		path := viper.GetString("session-file")
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
		return os.WriteFile(path, []byte(c.Value+"\n"), 0o600)
	}
	return errors.New("server did not set a session cookie; is it served over https with secure cookies?")
}

func serverURL() *url.URL {
	u, err := url.Parse(viper.GetString("server"))
	if err != nil {
		return &url.URL{}
	}
	return u
}
