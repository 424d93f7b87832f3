package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

const defaultPageTimeout = 30 * time.Second

// Element is a located DOM node a PageController can act on.
type Element interface {
	Click(ctx context.Context) error
	TypeText(ctx context.Context, text string) error
	Hover(ctx context.Context) error
	Text(ctx context.Context) (string, error)
}

// Page is the browser-driving surface PageController needs. A real
// implementation wraps whatever automation driver is wired in at the
// cmd layer; MemoryPage in this package implements the same contract
// without a browser.
type Page interface {
	Navigate(ctx context.Context, url string) error
	FindElement(ctx context.Context, cssSelector string) (Element, error)
	URL(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	ExecuteScript(ctx context.Context, script string) (interface{}, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// PageController drives a Page through the higher-level operations a
// FlowStep needs: smart-selector resolution with bounded-retry fallback,
// wait conditions, and script execution.
type PageController struct {
	page    Page
	timeout time.Duration
}

// NewPageController wraps page with the default operation timeout.
func NewPageController(page Page) *PageController {
	return &PageController{page: page, timeout: defaultPageTimeout}
}

// WithTimeout returns a copy of the controller using timeout for wait
// conditions instead of the default.
func (c *PageController) WithTimeout(timeout time.Duration) *PageController {
	return &PageController{page: c.page, timeout: timeout}
}

func (c *PageController) Navigate(ctx context.Context, url string) error {
	if err := c.page.Navigate(ctx, url); err != nil {
		return errors.Network(fmt.Sprintf("navigate to %s", url), err)
	}
	return nil
}

func (c *PageController) WaitForSelector(ctx context.Context, selector string) error {
	if _, err := c.page.FindElement(ctx, selector); err != nil {
		return errors.ElementNotFound(selector)
	}
	return nil
}

// WaitForCondition waits on condition. ElementHidden, UrlMatches and
// TextPresent poll every 100ms, as the original does, until satisfied or
// the controller's timeout elapses. NetworkIdle is a fixed 500ms pause.
// ElementVisible is a single lookup that fails with ElementNotFound when
// the element is absent, and PageLoaded runs the readyState script once
// without checking its result.
func (c *PageController) WaitForCondition(ctx context.Context, condition WaitCondition) error {
	switch condition.Kind {
	case WaitElementVisible:
		return c.WaitForSelector(ctx, condition.Pattern)
	case WaitElementHidden:
		return c.pollUntil(ctx, "ElementHidden", fmt.Sprintf("element %s still visible", condition.Pattern), func() (bool, error) {
			_, err := c.page.FindElement(ctx, condition.Pattern)
			return err != nil, nil
		})
	case WaitURLMatches:
		return c.pollUntil(ctx, "UrlMatches", fmt.Sprintf("URL does not match pattern: %s", condition.Pattern), func() (bool, error) {
			u, err := c.page.URL(ctx)
			if err != nil {
				return false, err
			}
			return containsSubstring(u, condition.Pattern), nil
		})
	case WaitNetworkIdle:
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	case WaitPageLoaded:
		_, err := c.page.ExecuteScript(ctx, "document.readyState === 'complete'")
		if err != nil {
			return errors.Network("page load check failed", err)
		}
		return nil
	case WaitTextPresent:
		return c.pollUntil(ctx, "TextPresent", fmt.Sprintf("text '%s' not found", condition.Pattern), func() (bool, error) {
			content, err := c.page.Content(ctx)
			if err != nil {
				return false, err
			}
			return containsSubstring(content, condition.Pattern), nil
		})
	default:
		return nil
	}
}

func (c *PageController) pollUntil(ctx context.Context, conditionName, details string, check func() (bool, error)) error {
	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		ok, err := check()
		if err == nil && ok {
			return nil
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Timeout(conditionName, details)
}

func (c *PageController) Click(ctx context.Context, selector SmartSelector) error {
	el, err := c.findElementWithFallback(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func (c *PageController) TypeText(ctx context.Context, selector SmartSelector, text string, clearFirst bool) error {
	el, err := c.findElementWithFallback(ctx, selector)
	if err != nil {
		return err
	}
	if clearFirst {
		if err := el.Click(ctx); err != nil {
			return err
		}
		_, _ = c.page.ExecuteScript(ctx, "document.execCommand('selectAll', false, null)")
	}
	return el.TypeText(ctx, text)
}

func (c *PageController) Hover(ctx context.Context, selector SmartSelector) error {
	el, err := c.findElementWithFallback(ctx, selector)
	if err != nil {
		return err
	}
	return el.Hover(ctx)
}

func (c *PageController) ExtractText(ctx context.Context, selector SmartSelector) (string, error) {
	el, err := c.findElementWithFallback(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

func (c *PageController) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	result, err := c.page.ExecuteScript(ctx, script)
	if err != nil {
		return nil, errors.Network("script execution failed", err)
	}
	return result, nil
}

func (c *PageController) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := c.page.Screenshot(ctx)
	if err != nil {
		return nil, errors.Network("screenshot failed", err)
	}
	return data, nil
}

func (c *PageController) GetURL(ctx context.Context) (string, error) {
	return c.page.URL(ctx)
}

func (c *PageController) GetContent(ctx context.Context) (string, error) {
	return c.page.Content(ctx)
}

// findElementWithFallback tries the primary selector, then each
// alternative in priority order, retrying with exponential backoff
// (500ms doubling, capped at 2s) for up to 15 attempts — 14 waits
// totalling 25.5s of patience for a slow-rendering element, matching the
// original.
func (c *PageController) findElementWithFallback(ctx context.Context, selector SmartSelector) (Element, error) {
	const maxAttempts = 15
	delay := 500 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if el, err := c.page.FindElement(ctx, c.selectorToCSS(ctx, selector)); err == nil {
			return el, nil
		}
		for _, alt := range selector.Alternatives {
			if el, err := c.page.FindElement(ctx, alternativeToCSS(alt)); err == nil {
				return el, nil
			}
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
			if delay > 2*time.Second {
				delay = 2 * time.Second
			}
		}
	}
	return nil, errors.ElementNotFound(c.selectorToCSS(ctx, selector))
}

// FindElementQuick makes three attempts 500ms apart (~1s of waiting),
// used where a caller just needs to know whether an element currently
// exists rather than wait out the full fallback chain.
func (c *PageController) FindElementQuick(ctx context.Context, selector SmartSelector) (Element, error) {
	css := c.selectorToCSS(ctx, selector)
	for attempt := 1; attempt <= 3; attempt++ {
		if el, err := c.page.FindElement(ctx, css); err == nil {
			return el, nil
		}
		if attempt < 3 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, errors.ElementNotFound(css)
}

func (c *PageController) selectorToCSS(ctx context.Context, selector SmartSelector) string {
	switch selector.SelectorType {
	case SelectorCSS:
		return selector.Value
	case SelectorText:
		return fmt.Sprintf(":contains('%s')", selector.Value)
	case SelectorAriaLabel:
		return fmt.Sprintf("[aria-label='%s']", selector.Value)
	case SelectorPlaceholder:
		return fmt.Sprintf("[placeholder='%s']", selector.Value)
	case SelectorXPath:
		// Runtime XPath->CSS conversion would evaluate JS against the
		// live DOM; without a real browser behind Page, XPath selectors
		// are passed through verbatim and rely on a driver that
		// understands them directly.
		return selector.Value
	default:
		return selector.Value
	}
}

func alternativeToCSS(alt AlternativeSelector) string {
	switch alt.SelectorType {
	case SelectorText:
		return fmt.Sprintf(":contains('%s')", alt.Value)
	case SelectorAriaLabel:
		return fmt.Sprintf("[aria-label='%s']", alt.Value)
	case SelectorPlaceholder:
		return fmt.Sprintf("[placeholder='%s']", alt.Value)
	default:
		return alt.Value
	}
}

func containsSubstring(haystack, needle string) bool {
	return len(needle) == 0 || indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
