package report

// dashboardHTML is the static debug dashboard. Each chart keeps its own
// endpoint so it can be opened full-size or curled on its own.
const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Prediction Debug Dashboard</title>
<style>
  body { margin: 0; padding: 16px; background: #100c2a; color: #eee; font-family: sans-serif; }
  h1 { font-size: 18px; margin: 0 0 12px 0; }
  .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(480px, 1fr)); gap: 16px; }
  .panel { background: #1b163f; border-radius: 6px; padding: 8px; }
  .panel h2 { font-size: 14px; margin: 0 0 8px 0; font-weight: normal; color: #aaa; }
  .panel h2 a { color: #7fb3ff; text-decoration: none; }
  iframe { width: 100%; height: 560px; border: 0; background: #100c2a; }
</style>
</head>
<body>
<h1>Prediction Debug Dashboard</h1>
<div class="grid">
  <div class="panel">
    <h2><a href="/debug/charts/trajectories">Predicted Trajectories</a></h2>
    <iframe src="/debug/charts/trajectories"></iframe>
  </div>
  <div class="panel">
    <h2><a href="/debug/charts/grid">Semantic Occupancy Grid</a></h2>
    <iframe src="/debug/charts/grid"></iframe>
  </div>
  <div class="panel">
    <h2><a href="/debug/charts/outcomes">Dispatch Outcomes</a></h2>
    <iframe src="/debug/charts/outcomes"></iframe>
  </div>
  <div class="panel">
    <h2><a href="/debug/charts/traces">Recorded Traces</a></h2>
    <iframe src="/debug/charts/traces"></iframe>
  </div>
</div>
</body>
</html>
`
