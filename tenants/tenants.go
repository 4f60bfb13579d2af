// Package tenants holds the static tenant table: who the tenants are, the
// staff credentials that log into them, and each tenant's built-in menu.
package tenants

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"hotel-billing/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type file struct {
	Tenants []tenantEntry `yaml:"tenants"`
}

type tenantEntry struct {
	ID          string            `yaml:"id"`
	DisplayName string            `yaml:"display_name"`
	Address     string            `yaml:"address"`
	Phone       string            `yaml:"phone"`
	IncludeGST  bool              `yaml:"include_gst"`
	PrintChatID int64             `yaml:"print_chat_id"`
	Credentials []credentialEntry `yaml:"credentials"`
	Menu        []menuEntry       `yaml:"menu"`
}

type credentialEntry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Admin        bool   `yaml:"admin"`
}

type menuEntry struct {
	Code     string  `yaml:"code"`
	Name     string  `yaml:"name"`
	Rate     float64 `yaml:"rate"`
	Category string  `yaml:"category"`
}

// Credential is one staff login. Admin credentials may edit the menu and
// delete bills.
type Credential struct {
	Username     string
	PasswordHash string
	TenantID     string
	Admin        bool
}

// Table is the immutable tenant table.
type Table struct {
	order       []string
	tenants     map[string]models.Tenant
	menus       map[string]models.Menu
	credentials map[string]Credential
}

// Load reads the table from path, or the built-in table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in table.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}

func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tenants: %w", err)
	}
	if len(f.Tenants) == 0 {
		return nil, fmt.Errorf("parse tenants: no tenants defined")
	}

	t := &Table{
		tenants:     make(map[string]models.Tenant),
		menus:       make(map[string]models.Menu),
		credentials: make(map[string]Credential),
	}
	for _, e := range f.Tenants {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("tenant without id")
		}
		if _, dup := t.tenants[id]; dup {
			return nil, fmt.Errorf("duplicate tenant id %q", id)
		}
		name := e.DisplayName
		if name == "" {
			name = id
		}
		t.order = append(t.order, id)
		t.tenants[id] = models.Tenant{
			ID:                  id,
			DisplayName:         name,
			Address:             e.Address,
			Phone:               e.Phone,
			IncludeGSTByDefault: e.IncludeGST,
			PrintChatID:         e.PrintChatID,
		}

		menu := make(models.Menu, len(e.Menu))
		for _, m := range e.Menu {
			code := strings.TrimSpace(m.Code)
			if code == "" || m.Name == "" {
				return nil, fmt.Errorf("tenant %q: menu item needs code and name", id)
			}
			if _, dup := menu[code]; dup {
				return nil, fmt.Errorf("tenant %q: duplicate menu code %q", id, code)
			}
			if m.Rate < 0 {
				return nil, fmt.Errorf("tenant %q: negative rate for %q", id, code)
			}
			menu[code] = models.MenuItem{
				Name:     m.Name,
				Rate:     decimal.NewFromFloat(m.Rate),
				Category: m.Category,
			}
		}
		t.menus[id] = menu

		for _, c := range e.Credentials {
			username := strings.ToLower(strings.TrimSpace(c.Username))
			if username == "" || c.PasswordHash == "" {
				return nil, fmt.Errorf("tenant %q: credential needs username and password_hash", id)
			}
			if _, dup := t.credentials[username]; dup {
				return nil, fmt.Errorf("duplicate username %q", username)
			}
			t.credentials[username] = Credential{
				Username:     username,
				PasswordHash: c.PasswordHash,
				TenantID:     id,
				Admin:        c.Admin,
			}
		}
	}
	return t, nil
}

func (t *Table) Tenant(id string) (models.Tenant, bool) {
	tenant, ok := t.tenants[id]
	return tenant, ok
}

// Tenants returns all tenants in file order.
func (t *Table) Tenants() []models.Tenant {
	out := make([]models.Tenant, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.tenants[id])
	}
	return out
}

// Credential looks up a login by username (case-insensitive).
func (t *Table) Credential(username string) (Credential, bool) {
	c, ok := t.credentials[strings.ToLower(strings.TrimSpace(username))]
	return c, ok
}

// DefaultMenu returns a fresh copy of the tenant's built-in menu.
func (t *Table) DefaultMenu(tenantID string) models.Menu {
	menu, ok := t.menus[tenantID]
	if !ok {
		return models.Menu{}
	}
	return menu.Clone()
}
