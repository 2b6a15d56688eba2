package pagestream_test

import (
	"fmt"
	"testing"

	"github.com/lanrat/pagestream"
	"github.com/lanrat/pagestream/tempfile"
)

// Benchmark configurations
var benchmarkChunkSizes = []int{16, 256, 4096}

var benchmarkBackends = []struct {
	name string
	new  func(b *testing.B) pagestream.Stream
}{
	{"disk", func(b *testing.B) pagestream.Stream {
		s, err := pagestream.New(&pagestream.Config{TempFilesDir: b.TempDir()})
		if err != nil {
			b.Fatal(err)
		}
		return s
	}},
	{"mockfile", func(b *testing.B) pagestream.Stream {
		s, err := pagestream.New(&pagestream.Config{Factory: tempfile.Mock()})
		if err != nil {
			b.Fatal(err)
		}
		return s
	}},
	{"mem", func(b *testing.B) pagestream.Stream {
		s, err := pagestream.NewMem(nil)
		if err != nil {
			b.Fatal(err)
		}
		return s
	}},
}

// BenchmarkAppend measures appends into a stream rotating every 1MB
func BenchmarkAppend(b *testing.B) {
	for _, backend := range benchmarkBackends {
		for _, size := range benchmarkChunkSizes {
			b.Run(fmt.Sprintf("%s/chunk_%d", backend.name, size), func(b *testing.B) {
				s := backend.new(b)
				defer s.Close()
				bounded, err := pagestream.NewBounded(s, 1<<20)
				if err != nil {
					b.Fatal(err)
				}
				chunk := make([]byte, size)
				b.SetBytes(int64(size))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := bounded.Append(chunk); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkRead measures reads spanning the page boundary
func BenchmarkRead(b *testing.B) {
	for _, backend := range benchmarkBackends {
		for _, size := range benchmarkChunkSizes {
			b.Run(fmt.Sprintf("%s/chunk_%d", backend.name, size), func(b *testing.B) {
				s := backend.new(b)
				defer s.Close()
				page := make([]byte, 1<<16)
				if _, err := s.Append(page); err != nil {
					b.Fatal(err)
				}
				if err := s.NewPage(); err != nil {
					b.Fatal(err)
				}
				if _, err := s.Append(page); err != nil {
					b.Fatal(err)
				}
				off := s.PageStart() - int64(size/2)
				buf := make([]byte, size)
				b.SetBytes(int64(size))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := s.Read(off, buf); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
