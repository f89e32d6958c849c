package extract

import (
	"encoding/json"
	"fmt"
)

// MainTextScript runs in the page, removes noise, and returns the innerText of
// the first content selector present, else of the body.
var MainTextScript = buildMainTextScript()

// LinksScript returns every anchor's resolved absolute href in document order.
const LinksScript = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

func buildMainTextScript() string {
	noise, _ := json.Marshal(NoiseSelectors)     //nolint:errchkjson // string slices always marshal
	content, _ := json.Marshal(ContentSelectors) //nolint:errchkjson // string slices always marshal
	return fmt.Sprintf(`(() => {
  const noise = %s;
  for (const sel of noise) {
    document.querySelectorAll(sel).forEach(el => el.remove());
  }
  const selectors = %s;
  for (const sel of selectors) {
    const el = document.querySelector(sel);
    if (el) {
      return el.innerText || '';
    }
  }
  return document.body ? document.body.innerText : '';
})()`, noise, content)
}
