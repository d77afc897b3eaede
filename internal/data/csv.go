package data

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"vwap-ema-trader/internal/model"
	"vwap-ema-trader/internal/service"
)

// CSVProvider 从 <Dir>/<SYMBOL>_<interval>.csv 读取 K 线
// 列顺序: timestamp,open,high,low,close,volume；表头可选
// 时间戳支持 RFC3339、"2006-01-02 15:04:05" (Location 时区) 和毫秒时间戳
type CSVProvider struct {
	Dir      string
	Location *time.Location
	logger   *zap.Logger
}

func NewCSVProvider(dir string, loc *time.Location, logger *zap.Logger) *CSVProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVProvider{Dir: dir, Location: loc, logger: logger}
}

// Path 返回请求对应的文件路径
func (p *CSVProvider) Path(req Request) string {
	name := fmt.Sprintf("%s_%s.csv", normalizeSymbol(req.Symbol), service.FormatInterval(req.Interval))
	return filepath.Join(p.Dir, name)
}

func (p *CSVProvider) FetchHistory(ctx context.Context, req Request) (model.Series, error) {
	path := p.Path(req)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoData, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, err := decodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	all, err := p.parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })

	p.logger.Debug("Loaded csv history", zap.String("path", path), zap.Int("rows", len(all)))
	return finalize(model.Series(all).Between(req.Start, req.End), req)
}

// decodeReader 检测 UTF-16 BOM，存在时转码为 UTF-8
func decodeReader(f *os.File) (io.Reader, error) {
	br := bufio.NewReader(f)
	b, _ := br.Peek(2)
	if len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		// ExpectBOM 会根据 BOM 自动选择字节序
		tr := transform.NewReader(f, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
		return bufio.NewReader(tr), nil
	}
	return br, nil
}

func (p *CSVProvider) parse(ctx context.Context, r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var out []model.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 columns, got %d", line, len(rec))
		}

		rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		ts, err := p.parseTime(rec[0])
		if err != nil {
			if line == 1 {
				continue // 表头
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		candle, err := candleFromStrings(ts, rec[1:6]...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, candle)
	}
	return out, nil
}

func (p *CSVProvider) parseTime(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(p.Location), nil
	}
	if t, err := time.ParseInLocation(time.DateTime, s, p.Location); err == nil {
		return t, nil
	}
	if ms, err := service.StringToInt64(s); err == nil {
		return time.UnixMilli(ms).In(p.Location), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
