package kresolve

import (
	"fmt"

	"github.com/birdayz/xodc/kproject"
)

// newProject is a test helper that builds a project from node ids with
// type "t" and links given as "from.PIN>to.PIN".
func newProject(nodes []string, links map[string]string) *kproject.Project {
	p := kproject.New()
	for _, id := range nodes {
		p.Nodes[kproject.NodeID(id)] = &kproject.Node{ID: kproject.NodeID(id), Type: "t"}
	}
	for id, spec := range links {
		var from, fromPin, to, toPin string
		if _, err := fmt.Sscanf(splitLink(spec), "%s %s %s %s", &from, &fromPin, &to, &toPin); err != nil {
			panic(fmt.Sprintf("bad link spec %q: %v", spec, err))
		}
		p.Links[kproject.LinkID(id)] = &kproject.Link{
			FromNodeID: kproject.NodeID(from),
			FromPinKey: kproject.PinKey(fromPin),
			ToNodeID:   kproject.NodeID(to),
			ToPinKey:   kproject.PinKey(toPin),
		}
	}
	return p
}

func splitLink(spec string) string {
	out := []byte(spec)
	for i, c := range out {
		if c == '.' || c == '>' {
			out[i] = ' '
		}
	}
	return string(out)
}

func ids(s ...string) []kproject.NodeID {
	out := make([]kproject.NodeID, len(s))
	for i, id := range s {
		out[i] = kproject.NodeID(id)
	}
	return out
}
