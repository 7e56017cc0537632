package callgraph

import "github.com/google/go-cmp/cmp/cmpopts"

var cmpIgnoreIndex = cmpopts.IgnoreUnexported(Node{})
