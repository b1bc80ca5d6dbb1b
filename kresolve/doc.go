// Package kresolve turns a project into a validated dependency graph and a
// deterministic evaluation order.
//
// # Graph
//
// Every link from an output of node A to an input of node B contributes the
// edge A -> B. Parallel links between the same pair of nodes collapse into a
// single edge, so a node's in-degree counts distinct upstream nodes.
//
// # Ordering
//
// The topology is computed with Kahn's algorithm. The ready queue is kept
// sorted by kproject.Compare, so whenever several nodes become ready at once
// the smallest id is emitted first. Ids consisting only of digits compare
// numerically and sort before all other ids.
//
// # Errors
//
// Resolve reports every structural problem it finds:
//
//   - DanglingLinkError: a link names a node, or with WithRegistry a pin,
//     that does not exist.
//   - MultipleSourcesError: two or more links target the same input pin.
//   - UnboundPinError: with WithRegistry, a required input has no link,
//     no configured value and no default.
//
// Only when the structure is valid is the graph sorted. A CyclicGraphError
// then lists every blocked node and one concrete cycle.
//
//	r, err := kresolve.Resolve(project, kresolve.WithRegistry(ktype.Core()))
//	if err != nil {
//	    var cycle *kresolve.CyclicGraphError
//	    if errors.As(err, &cycle) {
//	        log.Printf("cycle: %v", cycle.Cycle)
//	    }
//	}
package kresolve
