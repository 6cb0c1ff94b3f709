package export

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"time"

	"golang.org/x/exp/rand"
)

// getFilename 生成本地导出文件路径，suf 为带点的后缀
func getFilename(dir, stem, suf string) string {
	return path.Join(dir,
		fmt.Sprintf("%s_%s_%d%s",
			stem,
			time.Now().Format("20060102_150405"),
			randInt(1000, 9999),
			suf))
}

func randInt(min, max int) int {
	return rand.Intn(max-min) + min
}

func newZipWriter(zw *zip.Writer, name string, modified time.Time) (io.Writer, error) {
	return zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
}

// countWriter 统计写入字节数
type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
