package dashboard

import "github.com/gofiber/fiber/v2"

func (d *Dashboard) serveFrontend(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(frontendHTML)
}

const frontendHTML = `<!DOCTYPE html>
<html lang="en"><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Bubble Lens</title>
<style>
:root{--bg:#08090d;--sf:#0f1118;--sf2:#161923;--bd:#252a3a;--tx:#c8cdd8;--tx2:#8891a5;--tx3:#5a6278;--ac:#3b82f6;--gn:#10b981;--rd:#ef4444;--or:#f59e0b;--pr:#a855f7}
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:ui-monospace,monospace;background:var(--bg);color:var(--tx);min-height:100vh}
.app{max-width:1200px;margin:0 auto;padding:20px 24px}
.hdr{display:flex;justify-content:space-between;align-items:center;padding:16px 0;border-bottom:1px solid var(--bd);margin-bottom:24px}
.hdr h1{font-size:22px;font-weight:700;background:linear-gradient(135deg,var(--ac),var(--pr));-webkit-background-clip:text;-webkit-text-fill-color:transparent}
.sts{display:grid;grid-template-columns:repeat(auto-fit,minmax(130px,1fr));gap:12px;margin-bottom:24px}
.st{background:var(--sf);border:1px solid var(--bd);border-radius:10px;padding:15px 16px}
.st .v{font-size:24px;font-weight:700}.st .v.g{color:var(--gn)}.st .v.o{color:var(--or)}.st .v.r{color:var(--rd)}
.st .l{font-size:9px;color:var(--tx3);text-transform:uppercase;letter-spacing:.8px;margin-top:5px}
.pn{background:var(--sf);border:1px solid var(--bd);border-radius:12px;margin-bottom:18px;overflow:hidden}
.pn-h{padding:13px 18px;border-bottom:1px solid var(--bd);background:var(--sf2);font-size:13px;font-weight:600}
.pn-b{padding:14px 18px}
form{display:flex;gap:8px}
input,select,button{font-family:inherit;font-size:12px;padding:8px 10px;background:var(--sf2);color:var(--tx);border:1px solid var(--bd);border-radius:6px}
input{flex:1}button{background:var(--ac);color:#fff;border:none;cursor:pointer}
pre{white-space:pre-wrap;font-size:12px;line-height:1.5;margin-top:12px}
img{max-width:100%;margin-top:12px;border-radius:8px}
table{width:100%;border-collapse:collapse}
th{text-align:left;font-size:9px;color:var(--tx3);text-transform:uppercase;letter-spacing:.8px;padding:10px 14px;border-bottom:1px solid var(--bd)}
td{padding:10px 14px;border-bottom:1px solid rgba(37,42,58,.4);font-size:12px}
.ok{color:var(--gn)}.warn{color:var(--or)}.bad{color:var(--rd)}
</style></head>
<body><div class="app">
<div class="hdr"><h1>Bubble Lens</h1><span id="up" class="ok"></span></div>
<div class="sts" id="stats"></div>
<div class="pn"><div class="pn-h">Analyze</div><div class="pn-b">
<form id="f"><input id="addr" placeholder="0x... token address"><select id="chain"></select><button>Analyze</button></form>
<div id="out"></div></div></div>
<div class="pn"><div class="pn-h">Recent analyses</div>
<table><thead><tr><th>Time</th><th>Token</th><th>Chain</th><th>Outcome</th><th>Capture</th><th>Score</th><th>Took</th></tr></thead><tbody id="rows"></tbody></table></div>
</div>
<script>
const cls={complete:'ok',degraded:'warn',not_found:'warn',invalid:'bad',failed:'bad'};
const esc=s=>String(s??'').replace(/[&<>"]/g,c=>({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
async function j(u){const r=await fetch(u);return [r.status,await r.json()]}
async function load(){
  const [,s]=await j('/api/stats');
  const tiles=[['analyses',''],['complete','g'],['degraded','o'],['not_found','o'],['invalid','r'],['failed','r'],['distinct_tokens','']];
  document.getElementById('stats').innerHTML=tiles.map(([k,c])=>'<div class="st"><div class="v '+c+'">'+(s[k]||0)+'</div><div class="l">'+k.replace('_',' ')+'</div></div>').join('');
  const [,rows]=await j('/api/analyses?limit=50');
  document.getElementById('rows').innerHTML=rows.map(a=>'<tr><td>'+esc(new Date(a.created_at).toLocaleString())+'</td><td>'+esc(a.symbol||a.address.slice(0,10))+'</td><td>'+esc(a.chain)+'</td><td class="'+(cls[a.outcome]||'')+'">'+esc(a.outcome)+'</td><td>'+esc(a.capture||'-')+'</td><td>'+(a.score==null?'-':a.score.toFixed(0))+'</td><td>'+(a.duration_ms/1000).toFixed(1)+'s</td></tr>').join('');
}
async function chains(){
  const [,cs]=await j('/api/chains');
  document.getElementById('chain').innerHTML=cs.map(c=>'<option value="'+c.code+'">'+esc(c.name)+'</option>').join('');
}
document.getElementById('f').onsubmit=async e=>{
  e.preventDefault();
  const out=document.getElementById('out');
  out.innerHTML='<pre>Analyzing... this can take up to a minute and a half.</pre>';
  const q=new URLSearchParams({address:document.getElementById('addr').value,chain:document.getElementById('chain').value});
  const [st,r]=await j('/api/analyze?'+q);
  if(st!==200){out.innerHTML='<pre class="bad">'+esc(r.error)+'</pre>';return}
  out.innerHTML='<pre>'+esc(r.report)+'</pre>'+(r.image?'<img src="data:image/png;base64,'+r.image+'">':'');
  load();
};
chains();load();setInterval(load,15000);
</script></body></html>`
