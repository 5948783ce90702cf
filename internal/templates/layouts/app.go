package layouts

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// NavItem is one sidebar link.
type NavItem struct {
	Label string
	Path  string
}

// Nav is the admin sidebar, in display order.
var Nav = []NavItem{
	{"Calendar", "/admin/calendar"},
	{"Miqaats", "/admin/miqaats"},
	{"Library", "/admin/library"},
	{"Locations", "/admin/locations"},
	{"Shrines", "/admin/shrines"},
	{"Texts", "/admin/texts"},
	{"Media", "/admin/media"},
	{"Activity", "/admin/activity"},
}

// clientScript sends the CSRF cookie with every fetch and HTMX request and
// drives the sheet editor and calendar selection.
const clientScript = `
function csrfToken() {
  const m = document.cookie.match(/(?:^|; )miqaat_csrf=([^;]*)/);
  return m ? decodeURIComponent(m[1]) : "";
}
document.addEventListener("htmx:configRequest", (e) => {
  e.detail.headers["X-CSRF-Token"] = csrfToken();
});
async function api(method, url, body) {
  const res = await fetch(url, {
    method,
    headers: {"Content-Type": "application/json", "X-CSRF-Token": csrfToken()},
    body: body === undefined ? undefined : JSON.stringify(body),
  });
  const data = await res.json().catch(() => ({}));
  if (!res.ok) throw new Error(data.message || res.statusText);
  return data;
}
document.addEventListener("change", async (e) => {
  const cell = e.target.closest("[data-cell]");
  if (!cell) return;
  const sheet = cell.closest("[data-sheet]");
  const edit = {id: cell.dataset.id, column: cell.dataset.column, value: e.target.value};
  try {
    const [res] = await api("PATCH", sheet.dataset.sheet, [edit]);
    cell.classList.toggle("cell-error", !res.ok);
    cell.title = res.ok ? "" : res.error;
    if (res.ok) e.target.value = res.value;
  } catch (err) {
    cell.classList.add("cell-error");
    cell.title = err.message;
  }
});
document.addEventListener("click", (e) => {
  const day = e.target.closest("[data-day-key]");
  if (day && day.closest("[data-selectable]")) day.classList.toggle("selected");
  const scope = e.target.closest("[data-select-scope]");
  if (!scope) return;
  const grid = document.querySelector("[data-selectable]");
  const url = "/api/v1/calendar/selection?" + new URLSearchParams({
    year: grid.dataset.year, month: grid.dataset.month, scope: scope.dataset.selectScope});
  api("GET", url).then((data) => {
    const keys = new Set(data.keys);
    grid.querySelectorAll("[data-day-key]").forEach((el) =>
      el.classList.toggle("selected", keys.has(el.dataset.dayKey)));
    grid.dataset.extraKeys = JSON.stringify(data.keys);
  });
});
document.addEventListener("click", async (e) => {
  const del = e.target.closest("[data-delete]");
  if (!del || !confirm("Delete this file?")) return;
  const res = await fetch(del.dataset.url, {method: "DELETE", headers: {"X-CSRF-Token": csrfToken()}});
  if (res.ok) del.closest("li").remove(); else alert("Delete failed");
});
document.addEventListener("submit", async (e) => {
  const form = e.target.closest("[data-upload]");
  if (!form) return;
  e.preventDefault();
  const status = form.querySelector(".upload-status");
  const file = form.elements.file.files[0];
  const name = form.elements.name.value || (file && file.name) || "";
  const check = await api("GET", form.dataset.exists + "?" + new URLSearchParams({name}));
  if (check.exists) { status.textContent = "A file named " + name + " already exists."; return; }
  const res = await fetch(form.dataset.upload, {method: "POST", headers: {"X-CSRF-Token": csrfToken()}, body: new FormData(form)});
  const data = await res.json().catch(() => ({}));
  if (res.ok) location.reload(); else status.textContent = data.message || res.statusText;
});
document.addEventListener("submit", async (e) => {
  const form = e.target.closest("[data-selection-form]");
  if (!form) return;
  e.preventDefault();
  const grid = document.querySelector("[data-selectable]");
  const keys = new Set(JSON.parse(grid.dataset.extraKeys || "[]"));
  grid.querySelectorAll("[data-day-key].selected").forEach((el) => keys.add(el.dataset.dayKey));
  try {
    await api("POST", form.action, {keys: [...keys], name: form.elements.name.value,
      phase: form.elements.phase.value});
    location.reload();
  } catch (err) { alert(err.message); }
});
`

const stylesheet = `
:root { --bg:#fafaf7; --fg:#1d1d1b; --muted:#6b6b66; --line:#deded8; --accent:#1f6f5c; --sel:#cfe8df; }
[data-theme=dark] { --bg:#151614; --fg:#ecece6; --muted:#9a9a92; --line:#33342f; --accent:#5cc0a3; --sel:#23443a; }
body { margin:0; font:14px/1.45 system-ui, sans-serif; background:var(--bg); color:var(--fg); display:flex; min-height:100vh; }
nav.side { width:190px; border-right:1px solid var(--line); padding:16px; }
nav.side a { display:block; padding:6px 8px; color:var(--fg); text-decoration:none; border-radius:4px; }
nav.side a.active { background:var(--sel); }
main { flex:1; padding:20px 28px; }
table { border-collapse:collapse; width:100%; }
th, td { border-bottom:1px solid var(--line); padding:6px 8px; text-align:left; vertical-align:top; }
td input, td select { width:100%; border:0; background:transparent; color:inherit; font:inherit; }
.cell-error { outline:2px solid #c0392b; }
.flash { padding:8px 12px; margin-bottom:12px; border-radius:4px; background:var(--sel); }
.flash.error { background:#f6d5d1; color:#6d1d14; }
.muted { color:var(--muted); }
.cal { display:grid; grid-template-columns:repeat(7, 1fr); gap:1px; background:var(--line); border:1px solid var(--line); }
.cal > div { background:var(--bg); min-height:92px; padding:4px 6px; }
.cal .head { min-height:auto; font-weight:600; text-align:center; }
.cal .out { opacity:.45; }
.cal .today { box-shadow:inset 0 0 0 2px var(--accent); }
.cal .selected { background:var(--sel); }
.cal .ev { font-size:12px; margin-top:2px; }
.cal .ev.night::before { content:"\263E  "; }
.toolbar { display:flex; gap:8px; align-items:center; margin-bottom:12px; flex-wrap:wrap; }
.toolbar a, button { padding:4px 10px; border:1px solid var(--line); border-radius:4px; background:transparent; color:inherit; text-decoration:none; cursor:pointer; }
.pager { margin-top:12px; display:flex; gap:6px; }
.media-grid { list-style:none; padding:0; display:grid; grid-template-columns:repeat(auto-fill, minmax(160px, 1fr)); gap:12px; }
.media-grid li { border:1px solid var(--line); border-radius:4px; padding:8px; display:flex; flex-direction:column; gap:4px; }
.media-grid img { width:100%; height:120px; object-fit:cover; }
.upload { display:flex; gap:8px; align-items:center; margin-bottom:16px; }
`

// Page wraps body in the authenticated admin shell.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewHTML(w)
		head(h, ctx, title)
		h.Raw(`<nav class="side"><strong>Miqaat Admin</strong>`)
		active := ActivePath(ctx)
		for _, item := range Nav {
			h.Raw(`<a`).Attr("href", item.Path)
			if active == item.Path || strings.HasPrefix(active, item.Path+"/") {
				h.Raw(` class="active"`)
			}
			h.Raw(`>`).Text(item.Label).Raw(`</a>`)
		}
		if IsAuthenticated(ctx) {
			h.Raw(`<hr><div class="muted">`).Text(UserName(ctx)).Raw(`<br>`).Text(UserEmail(ctx)).Raw(`</div>`)
			h.Raw(`<form method="post" action="/logout">`)
			h.Raw(`<input type="hidden" name="csrf_token"`).Attr("value", CSRFToken(ctx)).Raw(`>`)
			h.Raw(`<button type="submit">Sign out</button></form>`)
		}
		h.Raw(`</nav><main>`)
		if f, ok := GetFlash(ctx); ok {
			h.Raw(`<div class="flash `).Text(f.Kind).Raw(`">`).Text(f.Message).Raw(`</div>`)
		}
		h.Raw(`<h1>`).Text(title).Raw(`</h1>`)
		h.Component(ctx, body)
		h.Raw(`</main></body></html>`)
		return h.Err()
	})
}

// Bare renders body without navigation, for sign-in and error pages.
func Bare(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewHTML(w)
		head(h, ctx, title)
		h.Raw(`<main><h1>`).Text(title).Raw(`</h1>`)
		h.Component(ctx, body)
		h.Raw(`</main></body></html>`)
		return h.Err()
	})
}

func head(h *HTML, ctx context.Context, title string) {
	h.Raw(`<!DOCTYPE html><html lang="en"`).Attr("data-theme", Theme(ctx)).Raw(`><head><meta charset="utf-8">`)
	h.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	h.Raw(`<title>`).Text(title).Raw(` · Miqaat Admin</title>`)
	h.Raw(`<style>` + stylesheet + `</style>`)
	h.Raw(`<script>` + clientScript + `</script></head><body>`)
}
