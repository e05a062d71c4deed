package workspace

// GroupEntry represents one group in the YAML, possibly with nested groups
type GroupEntry struct {
	Name       string       `yaml:"name"`
	Color      string       `yaml:"color"`
	KeepActive bool         `yaml:"keep_active"`
	Groups     []GroupEntry `yaml:"groups"`
}

// TabEntry represents a tab to open; Group is a slash-joined group path
type TabEntry struct {
	URL   string `yaml:"url"`
	Group string `yaml:"group"`
}

// Config is the root structure for a workspace file
//
//	groups:
//	  - name: Research
//	    color: blue
//	    groups:
//	      - name: Papers
//	tabs:
//	  - url: https://example.com
//	    group: Research/Papers
//	focus: 1
type Config struct {
	Groups []GroupEntry `yaml:"groups"`
	Tabs   []TabEntry   `yaml:"tabs"`
	// Focus is the 1-based index of the tab to focus, 0 for none
	Focus int `yaml:"focus"`
}
