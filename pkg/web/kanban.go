package web

// kanbanPage is the static board served at the root path. It renders one
// column per phase of the selected workflow and refreshes from the JSON API.
const kanbanPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Orchepy</title>
<style>
  body { font-family: -apple-system, sans-serif; margin: 0; background: #f4f5f7; color: #172b4d; }
  header { padding: 12px 20px; background: #172b4d; color: #fff; display: flex; gap: 16px; align-items: center; }
  header h1 { font-size: 18px; margin: 0; }
  select { padding: 4px 8px; }
  #board { display: flex; gap: 12px; padding: 16px; overflow-x: auto; align-items: flex-start; }
  .column { background: #ebecf0; border-radius: 6px; min-width: 240px; padding: 8px; }
  .column h2 { font-size: 13px; text-transform: uppercase; margin: 4px 8px 8px; color: #5e6c84; }
  .card { background: #fff; border-radius: 4px; box-shadow: 0 1px 1px rgba(9,30,66,.25); padding: 8px; margin-bottom: 8px; font-size: 13px; }
  .card .id { color: #5e6c84; font-size: 11px; }
</style>
</head>
<body>
<header>
  <h1>Orchepy</h1>
  <select id="workflow"></select>
</header>
<div id="board"></div>
<script>
async function loadWorkflows() {
  const res = await fetch('/workflows');
  const workflows = await res.json();
  const select = document.getElementById('workflow');
  select.innerHTML = '';
  for (const wf of workflows) {
    const option = document.createElement('option');
    option.value = wf.id;
    option.textContent = wf.name;
    select.appendChild(option);
  }
  select.onchange = () => loadBoard(select.value);
  if (workflows.length > 0) loadBoard(workflows[0].id);
}

async function loadBoard(workflowId) {
  const wf = await (await fetch('/workflows/' + workflowId)).json();
  const cases = await (await fetch('/cases?workflow_id=' + workflowId)).json();
  const board = document.getElementById('board');
  board.innerHTML = '';
  for (const phase of wf.phases) {
    const column = document.createElement('div');
    column.className = 'column';
    const title = document.createElement('h2');
    title.textContent = phase;
    column.appendChild(title);
    for (const c of cases.filter(c => c.current_phase === phase)) {
      const card = document.createElement('div');
      card.className = 'card';
      card.innerHTML = '<div class="id">' + c.id.slice(0, 8) + '</div>' +
        '<div>' + (c.status || '') + '</div>';
      column.appendChild(card);
    }
    board.appendChild(column);
  }
}

loadWorkflows();
setInterval(() => {
  const select = document.getElementById('workflow');
  if (select.value) loadBoard(select.value);
}, 10000);
</script>
</body>
</html>
`
