package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/clientconfig"
	"github.com/motionlab/backend/internal/session"
	"github.com/motionlab/backend/internal/validate"
)

type commandContext struct {
	configFlag  *string
	baseURLFlag *string
	jsonFlag    *bool

	configOnce sync.Once
	config     *clientconfig.Config
	configErr  error

	sessionOnce sync.Once
	storage     session.Storage
	users       *session.UserStore
	api         *client.Client
	sessionErr  error
}

func newCommandContext(configFlag, baseURLFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, baseURLFlag: baseURLFlag, jsonFlag: jsonFlag}
}

func (c *commandContext) ensureConfig() (*clientconfig.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := clientconfig.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.baseURLFlag != nil && strings.TrimSpace(*c.baseURLFlag) != "" {
			cfg.BaseURL = strings.TrimRight(strings.TrimSpace(*c.baseURLFlag), "/")
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureSession opens the state file, restores the sign-in and builds an API client that
// authenticates with it.
func (c *commandContext) ensureSession() error {
	c.sessionOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.sessionErr = err
			return
		}
		storage, err := session.NewFileStorage(cfg.StateFile)
		if err != nil {
			c.sessionErr = err
			return
		}
		api, err := client.New(client.Config{BaseURL: cfg.BaseURL})
		if err != nil {
			c.sessionErr = err
			return
		}
		users := session.NewUserStore(storage, api)
		if err := users.Hydrate(); err != nil {
			c.sessionErr = fmt.Errorf("restore session: %w", err)
			return
		}
		c.storage = storage
		c.users = users
		c.api = api.WithTokens(users)
	})
	return c.sessionErr
}

// requireRoute applies the route guard for the command's view.
func (c *commandContext) requireRoute(route string) error {
	if err := c.ensureSession(); err != nil {
		return err
	}
	switch session.Guard(route, c.users.State()) {
	case session.RedirectLogin:
		return errors.New("not signed in; run `motionlabctl login` first")
	case session.RedirectUnauthorized:
		return errors.New("admin access required")
	}
	return nil
}

func (c *commandContext) projectStore() (*session.ProjectStore, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	return session.NewProjectStore(c.storage, c.api)
}

func (c *commandContext) avatarStore() (*session.AvatarStore, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	return session.NewAvatarStore(c.storage, c.api)
}

// callContext bounds one API call by the configured request timeout.
func (c *commandContext) callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cfg.Timeout())
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// failure turns an unsuccessful response into an error listing field errors in order.
func failure(message string, errs validate.Errors) error {
	if len(errs) == 0 {
		if message == "" {
			message = "request failed"
		}
		return errors.New(message)
	}
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, errs[field]))
	}
	if message == "" {
		return errors.New(strings.Join(parts, "; "))
	}
	return fmt.Errorf("%s (%s)", message, strings.Join(parts, "; "))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
