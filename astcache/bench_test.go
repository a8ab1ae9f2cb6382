package astcache

import (
	"fmt"
	"testing"

	"github.com/arch-stack/shellaudit/parser"
)

var benchScript = []byte(`#!/usr/bin/env bash
set -euo pipefail

backup() {
	local target="$1"
	if [ -d "$target" ]; then
		tar -czf "/tmp/backup-$(date +%s).tgz" "$target"
	fi
}

for dir in /etc /var/log; do
	backup "$dir"
done
`)

func BenchmarkParseUncached(b *testing.B) {
	p := parser.New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := p.Parse(benchScript)
		if res.Root() == nil {
			b.Fatal("parse failed")
		}
	}
}

func BenchmarkGetOrParseHit(b *testing.B) {
	cache := New(parser.New(), 8)
	if _, err := cache.GetOrParse(benchScript, "bench.sh"); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.GetOrParse(benchScript, "bench.sh"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetOrParseChurn(b *testing.B) {
	cache := New(parser.New(), 8)
	scripts := make([][]byte, 32)
	for i := range scripts {
		scripts[i] = []byte(fmt.Sprintf("echo churn-%d\n", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.GetOrParse(scripts[i%len(scripts)], ""); err != nil {
			b.Fatal(err)
		}
	}
}
