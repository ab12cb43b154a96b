package bootstrap

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"chatbot_server/pkg/zlog"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const zipMime = "application/zip"

// CorpusDownloader 从 NLTK 数据仓库下载语料压缩包并解压
type CorpusDownloader struct {
	Client  *http.Client
	BaseUrl string
	Dir     string
}

// Fetch 下载 <BaseUrl>/<corpus>.zip 到 <Dir>/<corpus>.zip 并在同目录解压，corpus 形如 "tokenizers/punkt"
func (d *CorpusDownloader) Fetch(ctx context.Context, corpus string) error {
	category, name := path.Split(strings.Trim(corpus, "/"))
	if category == "" || name == "" {
		return fmt.Errorf("corpus %q must look like <category>/<name>", corpus)
	}
	targetDir := filepath.Join(d.Dir, filepath.FromSlash(strings.TrimSuffix(category, "/")))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	archive := filepath.Join(targetDir, name+".zip")

	url := strings.TrimRight(d.BaseUrl, "/") + "/" + strings.Trim(corpus, "/") + ".zip"
	if err := d.download(ctx, url, archive); err != nil {
		return fmt.Errorf("download %s: %w", corpus, err)
	}
	// 代理或错误页可能以 200 返回 HTML
	mtype, err := mimetype.DetectFile(archive)
	if err != nil {
		return err
	}
	if !isZip(mtype) {
		return fmt.Errorf("download %s: expected %s, got %s", corpus, zipMime, mtype.String())
	}
	n, err := extract(archive, targetDir)
	if err != nil {
		return fmt.Errorf("extract %s: %w", corpus, err)
	}
	zlog.Info("语料下载完成", zap.String("corpus", corpus), zap.String("archive", archive), zap.Int("files", n))
	return nil
}

func (d *CorpusDownloader) download(ctx context.Context, url, dst string) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// isZip 同时接受 jar 等以 zip 为容器的格式
func isZip(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(zipMime) {
			return true
		}
	}
	return false
}

// extract 解压到 dir，拒绝跳出 dir 的条目
func extract(archive, dir string) (int, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	files := 0
	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("illegal path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
