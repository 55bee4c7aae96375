package livereload

import (
	"bytes"
	"fmt"
	"strconv"
)

// Path is the prefix hubs are mounted under.
const Path = "/__ginger/livereload"

// Endpoint returns the mount path of a channel's hub.
func Endpoint(channel string) string {
	return Path + "/" + channel
}

const clientJS = `<script>
(function() {
  var url = (location.protocol === 'https:' ? 'wss://' : 'ws://') + location.hostname + ':%s%s';
  function refreshStyles() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].href.replace(/[?&]ginger=\d+/, '');
      links[i].href = href + (href.indexOf('?') < 0 ? '?' : '&') + 'ginger=' + Date.now();
    }
  }
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function(e) {
      var msg = JSON.parse(e.data);
      if (msg.command === 'css') {
        refreshStyles();
      } else {
        location.reload();
      }
    };
    ws.onclose = function() { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
`

// Snippet returns the client script connecting to the hub of channel
// on port.
func Snippet(port int, channel string) []byte {
	return []byte(fmt.Sprintf(clientJS, strconv.Itoa(port), Endpoint(channel)))
}

// Inject inserts snippet before the closing body tag, or appends it when
// the document has none.
func Inject(doc, snippet []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), doc...), snippet...)
	}
	out := make([]byte, 0, len(doc)+len(snippet))
	out = append(out, doc[:i]...)
	out = append(out, snippet...)
	return append(out, doc[i:]...)
}
