package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// MemoryElement is an Element backed by an in-memory DOM node.
type MemoryElement struct {
	node *domNode
}

func (e *MemoryElement) Click(ctx context.Context) error {
	e.node.clicked++
	return nil
}

func (e *MemoryElement) TypeText(ctx context.Context, text string) error {
	e.node.value = text
	return nil
}

func (e *MemoryElement) Hover(ctx context.Context) error {
	e.node.hovered++
	return nil
}

func (e *MemoryElement) Text(ctx context.Context) (string, error) {
	return e.node.text, nil
}

type domNode struct {
	selector string
	text     string
	value    string
	html     string
	clicked  int
	hovered  int
}

// MemoryPage is a reference Page implementation backed by an in-memory
// DOM snapshot and a goja runtime, used where no real browser driver is
// wired in (tests, dry-run replay). It is deliberately not a browser:
// ExecuteScript runs caller scripts against a small document shim
// rather than evaluating against live rendered content.
type MemoryPage struct {
	mu      sync.Mutex
	url     string
	content string
	nodes   map[string]*domNode
	vm      *goja.Runtime
}

// NewMemoryPage builds an empty in-memory page.
func NewMemoryPage() *MemoryPage {
	return &MemoryPage{
		nodes: make(map[string]*domNode),
		vm:    goja.New(),
	}
}

// SetNode registers a selector so FindElement can resolve it, for tests
// that need to simulate an element existing on the page.
func (p *MemoryPage) SetNode(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[selector] = &domNode{selector: selector, text: text}
}

// SetContent sets the page's raw HTML content, used by text-presence
// wait conditions and CheckSession.
func (p *MemoryPage) SetContent(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = content
}

func (p *MemoryPage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return nil
}

func (p *MemoryPage) FindElement(ctx context.Context, cssSelector string) (Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	node, ok := p.nodes[cssSelector]
	if !ok {
		return nil, errors.ElementNotFound(cssSelector)
	}
	return &MemoryElement{node: node}, nil
}

func (p *MemoryPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *MemoryPage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

// ExecuteScript evaluates script in a fresh goja runtime seeded with a
// minimal document shim built from the current DOM snapshot. Only
// the handful of APIs the flow engine's own generated scripts rely on
// (querySelector().value/innerHTML/outerHTML/getAttribute, document.cookie,
// document.readyState) are shimmed; other globals, window included, are
// undefined and raise a ReferenceError from goja itself.
func (p *MemoryPage) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	p.mu.Lock()
	nodes := make(map[string]*domNode, len(p.nodes))
	for k, v := range p.nodes {
		nodes[k] = v
	}
	p.mu.Unlock()

	vm := goja.New()
	document := vm.NewObject()
	_ = document.Set("readyState", "complete")
	_ = document.Set("cookie", "")
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		node, ok := nodes[sel]
		if !ok {
			return goja.Null()
		}
		el := vm.NewObject()
		_ = el.Set("value", node.value)
		_ = el.Set("innerHTML", node.html)
		_ = el.Set("outerHTML", node.html)
		_ = el.Set("getAttribute", func(inner goja.FunctionCall) goja.Value {
			return vm.ToValue("")
		})
		return el
	})
	_ = vm.Set("document", document)

	result, err := vm.RunString(script)
	if err != nil {
		return nil, errors.Network("script execution failed", err)
	}
	return result.Export(), nil
}

func (p *MemoryPage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return []byte(fmt.Sprintf("screenshot:%s", p.url)), nil
}

func domSelectorKey(tag, id string) string {
	if id != "" {
		return "#" + id
	}
	return strings.ToLower(tag)
}
