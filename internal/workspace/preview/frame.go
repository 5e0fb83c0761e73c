package preview

import (
	"html/template"
	"io"
)

// FrameCSP isolates the preview document: the sandbox directive gives it an
// opaque origin without host storage, and connect-src blocks network access.
const FrameCSP = "sandbox allow-scripts allow-forms allow-modals allow-popups; " +
	"default-src 'none'; script-src 'unsafe-inline'; style-src 'unsafe-inline'; " +
	"img-src data: blob:; font-src data:; connect-src 'none'"

// bridgeScript speaks the message protocol with the host page.
const bridgeScript = `(function () {
  var post = function (msg) { window.parent.postMessage(msg, "*"); };
  var current = function () { return location.pathname + location.search; };
  var report = function () { post({ type: "navigation", path: current() }); };
  ["pushState", "replaceState"].forEach(function (name) {
    var orig = history[name];
    history[name] = function () { var r = orig.apply(this, arguments); report(); return r; };
  });
  window.addEventListener("popstate", report);
  window.addEventListener("message", function (ev) {
    var msg = ev.data || {};
    if (msg.type === "navigate-to" && typeof msg.path === "string") {
      history.pushState({}, "", msg.path);
      window.dispatchEvent(new PopStateEvent("popstate"));
    }
  });
  document.addEventListener("click", function (ev) {
    if (!ev.altKey) { return; }
    ev.preventDefault();
    ev.stopPropagation();
    var el = ev.target;
    var src = el.closest ? el.closest("[data-loc]") : null;
    post({
      type: "inspect-element",
      path: current(),
      loc: src ? src.getAttribute("data-loc") : "",
      textContext: (el.innerText || "").slice(0, 200),
      className: typeof el.className === "string" ? el.className : ""
    });
  }, true);
  window.__askAiFix = function (error, file) {
    post({ type: "ask-ai-fix", error: String(error), file: file || "" });
  };
  window.addEventListener("error", function (ev) {
    var box = document.getElementById("__preview_error");
    if (!box) { return; }
    box.hidden = false;
    box.querySelector("pre").textContent = ev.message;
  });
  report();
})();`

var frameTmpl = template.Must(template.New("frame").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script>{{.Bridge}}</script>
</head>
<body>
<div id="root"></div>
<div id="__preview_error" hidden>
<pre></pre>
<button type="button" onclick="window.__askAiFix(this.previousElementSibling.textContent, {{.ActiveFile}})">Fix with AI</button>
</div>
{{if .Bundle}}<script>{{.Bundle}}</script>{{end}}
</body>
</html>
`))

// FrameData feeds the frame template.
type FrameData struct {
	Title      string
	ActiveFile string
	Bundle     string
}

// RenderFrame writes the isolated preview document. The bundle comes from the
// build service and is embedded as trusted script.
func RenderFrame(w io.Writer, d FrameData) error {
	if d.Title == "" {
		d.Title = "Preview"
	}
	return frameTmpl.Execute(w, struct {
		Title      string
		ActiveFile string
		Bridge     template.JS
		Bundle     template.JS
	}{
		Title:      d.Title,
		ActiveFile: d.ActiveFile,
		Bridge:     template.JS(bridgeScript),
		Bundle:     template.JS(d.Bundle),
	})
}
