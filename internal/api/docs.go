package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>TabFocus API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/events" style="
    position: fixed;
    top: 12px;
    right: 16px;
    z-index: 9999;
    background: #161b22;
    border: 1px solid #30363d;
    border-radius: 6px;
    color: #58a6ff;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    font-size: 12px;
    font-weight: 500;
    padding: 5px 12px;
    text-decoration: none;
  ">Event Stream Docs →</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`


const eventsDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <title>TabFocus Event Stream</title>
  <style>
    body { background: #0d1117; color: #c9d1d9; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; max-width: 860px; margin: 40px auto; padding: 0 16px; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
    code { padding: 1px 5px; }
    pre { padding: 12px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border-bottom: 1px solid #30363d; padding: 6px 8px; text-align: left; }
    a { color: #58a6ff; }
  </style>
</head>
<body>
  <p><a href="/docs">&larr; API reference</a></p>
  <h1>Event stream</h1>
  <p><code>GET /api/v1/events</code> is a Server-Sent Events stream. Each message's
  <code>event</code> field is the event type and <code>data</code> is a JSON payload.
  Pass <code>?types=switch,tab.removed</code> to receive only some types.
  A comment line is sent every 30 seconds to keep idle connections open.</p>
  <table>
    <tr><th>Type</th><th>Payload</th></tr>
    <tr><td><code>switch</code></td><td><code>{"targetId", "result": {"action", "tabId", "url"}}</code></td></tr>
    <tr><td><code>target.updated</code></td><td>the full target, including its binding</td></tr>
    <tr><td><code>target.deleted</code></td><td><code>{"id"}</code></td></tr>
    <tr><td><code>preferences.updated</code></td><td>the new preferences</td></tr>
    <tr><td><code>tab.created</code></td><td>the tab</td></tr>
    <tr><td><code>tab.updated</code></td><td>the tab after the change</td></tr>
    <tr><td><code>tab.removed</code></td><td><code>{"id"}</code></td></tr>
    <tr><td><code>state.reloaded</code></td><td>the state file after an external edit</td></tr>
  </table>
  <h2>Example</h2>
  <pre>curl -N 'http://127.0.0.1:8188/api/v1/events?types=switch'

event: switch
data: {"targetId":"mail","result":{"action":"focused","tabId":"8F1C...","url":"https://mail.google.com/mail/u/0/"}}</pre>
</body>
</html>`
