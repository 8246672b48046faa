// Command orderflake-vet runs the orderflake analyzer as a standalone
// vet tool:
//
//	go vet -vettool=$(which orderflake-vet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/unbound-force/orderflake/internal/gosource"
)

func main() {
	singlechecker.Main(gosource.Analyzer)
}
