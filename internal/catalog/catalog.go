package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed companies.yaml
var defaultCatalog []byte

type Company struct {
	Name         string   `yaml:"name" json:"name"`
	Crawlable    bool     `yaml:"crawlable" json:"crawlable"`
	BillKeywords []string `yaml:"bill_keywords" json:"-"`
	BillPattern  string   `yaml:"bill_pattern" json:"-"`
	PDFMarkers   []string `yaml:"pdf_markers" json:"-"`
	Preprocessor string   `yaml:"preprocessor" json:"-"`
	// Templates names the invoice workbooks; an entry without ".xlsx" is a
	// substring matched against the template source listing.
	Templates []string       `yaml:"templates" json:"-"`
	Collector *CollectorSpec `yaml:"collector" json:"-"`
}

type CollectorSpec struct {
	LoginPath     string   `yaml:"login_path"`
	UserField     string   `yaml:"user_field"`
	PasswordField string   `yaml:"password_field"`
	Exports       []Export `yaml:"exports"`
}

// Export is one spreadsheet download on a client's SMS/call site.
type Export struct {
	Kind       string            `yaml:"kind"`
	Account    string            `yaml:"account"`
	Method     string            `yaml:"method"`
	Path       string            `yaml:"path"`
	StartParam string            `yaml:"start_param"`
	EndParam   string            `yaml:"end_param"`
	DateFormat string            `yaml:"date_format"`
	FileName   string            `yaml:"file_name"`
	Params     map[string]string `yaml:"params"`
}

type catalogFile struct {
	Version   int       `yaml:"version"`
	Companies []Company `yaml:"companies"`
}

type Catalog struct {
	companies []Company
	byName    map[string]int
	patterns  map[string]*regexp.Regexp
}

// Load reads the catalog at path. An empty path searches upward for
// config/companies.yaml and falls back to the built-in list.
func Load(path string) (*Catalog, error) {
	if path == "" {
		p, ok := defaultPath()
		if !ok {
			return Parse(defaultCatalog)
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(b []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, err
	}
	if cf.Version != 1 {
		return nil, errors.New("catalog: unsupported version")
	}
	if len(cf.Companies) == 0 {
		return nil, errors.New("catalog: empty")
	}

	c := &Catalog{byName: map[string]int{}, patterns: map[string]*regexp.Regexp{}}
	for i, co := range cf.Companies {
		if co.Name == "" {
			return nil, fmt.Errorf("catalog: company %d has no name", i)
		}
		if _, dup := c.byName[co.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate company %q", co.Name)
		}
		if co.Crawlable && co.Collector == nil {
			return nil, fmt.Errorf("catalog: %s is crawlable but has no collector", co.Name)
		}
		c.byName[co.Name] = i
		c.companies = append(c.companies, co)

		pattern := co.BillPattern
		if pattern == "" && len(co.BillKeywords) > 0 {
			pattern = `(\(주\)메타엠.*` + regexp.QuoteMeta(co.BillKeywords[0]) + `)\s+고객님\s+([0-9,]+원)`
		}
		if pattern != "" {
			re, err := regexp.Compile(`(?is)` + pattern)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s bill_pattern: %w", co.Name, err)
			}
			c.patterns[co.Name] = re
		}
	}
	return c, nil
}

func defaultPath() (string, bool) {
	path := filepath.Join("config", "companies.yaml")
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		path = filepath.Join("..", path)
	}
	return "", false
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.companies))
	for _, co := range c.companies {
		out = append(out, co.Name)
	}
	return out
}

func (c *Catalog) Companies() []Company {
	return append([]Company(nil), c.companies...)
}

func (c *Catalog) Get(name string) (Company, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Company{}, false
	}
	return c.companies[i], true
}

func (c *Catalog) AmountPattern(name string) *regexp.Regexp {
	return c.patterns[name]
}
