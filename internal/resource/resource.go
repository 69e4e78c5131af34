// Package resource holds the catalogue of gated resources and computes the
// payment terms of each one.
package resource

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mondb-dev/x402-wp/internal/address"
	"github.com/mondb-dev/x402-wp/internal/amount"
	"github.com/mondb-dev/x402-wp/internal/mimes"
	"github.com/mondb-dev/x402-wp/internal/tokens"
)

// Resource is one catalogue entry as configured by the operator.
type Resource struct {
	ID           string `yaml:"id"`
	Path         string `yaml:"path"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Network      string `yaml:"network"`
	TokenAddress string `yaml:"token_address"`
	Amount       string `yaml:"amount"`
	AmountFormat string `yaml:"amount_format"`
	// TokenDecimals of 0 means the registry is consulted.
	TokenDecimals uint   `yaml:"token_decimals"`
	RecipientEVM  string `yaml:"recipient_evm"`
	RecipientSVM  string `yaml:"recipient_svm"`
	TokenName     string `yaml:"token_name"`
	TokenVersion  string `yaml:"token_version"`
	Content       string `yaml:"content"`
	MimeType      string `yaml:"mime_type"`
}

// PaywallConfig is the payment terms of a resource for one request.
type PaywallConfig struct {
	ResourceID   string
	Title        string
	Recipient    string
	Amount       string
	TokenAddress string
	Network      string
	Decimals     uint
	TokenName    string
	TokenVersion string
	Description  string
	MimeType     string
	ResourceURL  string
	Path         string
}

// Catalog is the read-only set of resources.
type Catalog struct {
	byID     map[string]Resource
	registry *tokens.Registry
	baseURL  string
}

func NewCatalog(resources []Resource, registry *tokens.Registry, baseURL string) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[string]Resource, len(resources)),
		registry: registry,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}

	for _, r := range resources {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return nil, fmt.Errorf("resource without id: %q", r.Title)
		}
		if _, ok := c.byID[r.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		}
		if r.Path == "" {
			r.Path = "/r/" + url.PathEscape(r.ID)
		}
		c.byID[r.ID] = r
	}

	return c, nil
}

func (c *Catalog) Get(id string) (Resource, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// List returns all resources sorted by id.
func (c *Catalog) List() []Resource {
	out := make([]Resource, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PaywallConfig computes the payment terms of resource id. Amount errors
// from package amount are returned wrapped and indicate a misconfigured
// resource.
func (c *Catalog) PaywallConfig(id string) (*PaywallConfig, error) {
	r, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrResourceNotFound, id)
	}

	recipient := r.RecipientEVM
	if address.FamilyOf(r.Network) == address.FamilySVM {
		recipient = r.RecipientSVM
	}
	payTo, ok := address.Normalize(recipient, r.Network)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoRecipient, r.Network)
	}

	asset, ok := address.Normalize(r.TokenAddress, r.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAsset, r.TokenAddress)
	}

	var (
		decimals     = r.TokenDecimals
		tokenName    = r.TokenName
		tokenVersion = r.TokenVersion
	)
	if tok, ok := c.registry.Lookup(r.Network, asset); ok {
		if decimals == 0 {
			decimals = tok.Decimals
		}
		if tokenName == "" {
			tokenName = tok.TokenName
		}
		if tokenVersion == "" {
			tokenVersion = tok.TokenVersion
		}
	} else if decimals == 0 && r.AmountFormat != amount.FormatAtomic {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownDecimals, asset, r.Network)
	}

	atomic, err := amount.Normalize(r.Amount, r.AmountFormat, decimals)
	if err != nil {
		return nil, fmt.Errorf("resource %q amount: %w", r.ID, err)
	}

	mimeType := r.MimeType
	if mimeType == "" {
		mimeType = mimes.FromFilenameOrDefault(r.Content)
	}

	return &PaywallConfig{
		ResourceID:   r.ID,
		Title:        r.Title,
		Recipient:    payTo,
		Amount:       atomic,
		TokenAddress: asset,
		Network:      r.Network,
		Decimals:     decimals,
		TokenName:    tokenName,
		TokenVersion: tokenVersion,
		Description:  r.Description,
		MimeType:     mimeType,
		ResourceURL:  c.baseURL + r.Path,
		Path:         r.Path,
	}, nil
}
