package generation

import (
	"path/filepath"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"gotsd/internal/config"
	"gotsd/internal/errs"
	"gotsd/internal/logger"
	"gotsd/internal/metadata"
)

// Namespace groups the top-level declarations of one namespace in discovery
// order.
type Namespace struct {
	Name  string
	Types []*metadata.TypeDecl
}

// RenderedNamespace is the declaration block of one namespace.
type RenderedNamespace struct {
	Name string
	Text string
}

// TypeCollection accumulates the types of every added assembly and renders
// them as one declaration document. It is not safe for concurrent use.
type TypeCollection struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	sink     ErrorSink
	filter   *regexp2.Regexp
	selector *Selector

	assemblies map[string]bool
	namespaces []*Namespace
	byName     map[string]*Namespace
	known      map[string]*metadata.TypeDecl
}

type Option func(*TypeCollection)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *TypeCollection) { c.log = log }
}

// WithErrorSink replaces the default sink, which logs and substitutes (or
// aborts when the configuration is strict).
func WithErrorSink(sink ErrorSink) Option {
	return func(c *TypeCollection) { c.sink = sink }
}

func NewTypeCollection(cfg config.Config, options ...Option) (*TypeCollection, error) {
	c := &TypeCollection{
		cfg:        cfg,
		log:        logger.Nop(),
		selector:   NewSelector(),
		assemblies: make(map[string]bool),
		byName:     make(map[string]*Namespace),
		known:      make(map[string]*metadata.TypeDecl),
	}
	for _, option := range options {
		option(c)
	}
	if c.sink == nil {
		c.sink = SubstituteSink(c.log)
		if cfg.Strict {
			c.sink = AbortSink(c.log)
		}
	}
	if cfg.NameFilter != "" {
		filter, err := regexp2.Compile(cfg.NameFilter, regexp2.None)
		if err != nil {
			return nil, errs.WithHint(errs.Wrapf(err, "invalid name filter %q", cfg.NameFilter),
				"the filter uses .NET regular expression syntax")
		}
		c.filter = filter
	}
	return c, nil
}

// assemblyKey identifies an assembly by its cleaned path, ignoring case.
func assemblyKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// AddAssembly registers the types of a. Adding the same path twice is a no-op
// and reports false. A qualified name keeps its first declaration.
func (c *TypeCollection) AddAssembly(a *metadata.Assembly) bool {
	if a.Path != "" {
		key := assemblyKey(a.Path)
		if c.assemblies[key] {
			c.log.Debugw("Assembly already added", logger.FieldPath, a.Path)
			return false
		}
		c.assemblies[key] = true
	}

	added := 0
	for _, t := range a.Types {
		if _, found := c.known[t.FullName()]; found {
			c.log.Debugw("Duplicate type ignored", logger.FieldType, t.FullName(), logger.FieldPath, a.Path)
			continue
		}
		c.register(t)

		ns, found := c.byName[t.Namespace]
		if !found {
			ns = &Namespace{Name: t.Namespace}
			c.byName[t.Namespace] = ns
			c.namespaces = append(c.namespaces, ns)
		}
		ns.Types = append(ns.Types, t)
		added++
	}
	c.log.Infow("Added assembly", logger.FieldPath, a.Path, logger.FieldCount, added)
	return true
}

func (c *TypeCollection) register(t *metadata.TypeDecl) {
	if _, found := c.known[t.FullName()]; !found {
		c.known[t.FullName()] = t
	}
	for _, nested := range t.NestedTypes {
		c.register(nested)
	}
}

// Lookup returns the declaration registered under a qualified name.
func (c *TypeCollection) Lookup(fullName string) *metadata.TypeDecl {
	return c.known[fullName]
}

// Namespaces returns the namespaces in discovery order.
func (c *TypeCollection) Namespaces() []*Namespace {
	return c.namespaces
}

// emits reports whether a top-level declaration gets rendered.
func (c *TypeCollection) emits(t *metadata.TypeDecl) bool {
	if !t.IsPublic() || ShouldIgnoreTypeByName(t.Name) {
		return false
	}
	if c.filter == nil {
		return true
	}
	matched, err := c.filter.MatchString(t.FullName())
	if err != nil {
		c.log.Warnw("Name filter failed", logger.FieldType, t.FullName(), "error", err)
		return false
	}
	return matched
}

// RenderNamespaces renders every namespace that has something to emit. On
// abort it returns the namespaces completed so far, including the partial
// block of the namespace being rendered without the aborted type, together
// with an error marked errs.ErrTypeNotFound.
func (c *TypeCollection) RenderNamespaces() ([]RenderedNamespace, error) {
	ctx := &renderContext{
		cfg:      c.cfg,
		mapper:   NewMapper(c.cfg, c.Lookup, c.sink),
		selector: c.selector,
		level:    1,
	}

	var rendered []RenderedNamespace
	for _, ns := range c.namespaces {
		blocks, err := c.renderTypes(ns, ctx)
		if len(blocks) > 0 {
			rendered = append(rendered, RenderedNamespace{Name: NamespaceName(ns.Name), Text: namespaceBlock(ns.Name, blocks)})
		}
		if err != nil {
			return rendered, err
		}
		c.log.Debugw("Rendered namespace", logger.FieldNamespace, NamespaceName(ns.Name), logger.FieldCount, len(blocks))
	}
	return rendered, nil
}

func (c *TypeCollection) renderTypes(ns *Namespace, ctx *renderContext) ([]string, error) {
	var blocks []string
	seen := make(map[string]bool)
	for _, t := range ns.Types {
		if !c.emits(t) {
			continue
		}
		var sb strings.Builder
		if err := c.selector.Write(&sb, t, ctx); err != nil {
			return blocks, errs.Wrapf(err, "rendering %s", t.FullName())
		}
		block := sb.String()
		if seen[block] {
			continue
		}
		seen[block] = true
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func namespaceBlock(name string, blocks []string) string {
	var sb strings.Builder
	sb.WriteString("declare namespace " + NamespaceName(name) + " {\n\n")
	sb.WriteString(strings.Join(blocks, "\n"))
	sb.WriteString("\n}\n")
	return sb.String()
}

// Render produces the declaration document: the optional preamble followed by
// one block per namespace. Nothing to emit renders the empty string.
func (c *TypeCollection) Render() (string, error) {
	namespaces, err := c.RenderNamespaces()
	return c.document(namespaces), err
}

func (c *TypeCollection) document(namespaces []RenderedNamespace) string {
	parts := make([]string, 0, len(namespaces)+1)
	if c.cfg.IncludeSpecialTypesPreamble {
		parts = append(parts, Preamble)
	}
	for _, ns := range namespaces {
		parts = append(parts, ns.Text)
	}
	return strings.Join(parts, "\n")
}
