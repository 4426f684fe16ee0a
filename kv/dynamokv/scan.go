package dynamokv

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/arbor/kv"
)

// Scan returns a cursor over the records of kind matching scan. The filter is
// evaluated by DynamoDB and re-checked on decoded records so numeric widths
// compare the way they do in every other backend.
func (s *Store) Scan(ctx context.Context, kind string, scan kv.Scan) kv.Cursor {
	f, ok, err := buildFilter(scan.Predicates)
	if err != nil {
		return kv.ErrCursor(err)
	}
	if !ok {
		return kv.NewSliceCursor(nil)
	}
	input := &dynamodb.ScanInput{
		TableName:      aws.String(s.config.TableName(kind)),
		ConsistentRead: aws.Bool(s.config.ConsistentRead),
	}
	if f != nil {
		input.FilterExpression = aws.String(f.expr)
		input.ExpressionAttributeNames = f.names
		input.ExpressionAttributeValues = f.values
	}
	s.logger.Debug("scanning table", "table", s.config.TableName(kind),
		"predicates", len(scan.Predicates), "segments", s.config.ScanSegments)

	if s.config.ScanSegments > 1 {
		return &segmentCursor{ctx: ctx, store: s, kind: kind, input: input, scan: scan}
	}
	return &pageCursor{
		ctx:   ctx,
		pager: dynamodb.NewScanPaginator(s.client, input),
		kind:  kind,
		scan:  scan,
	}
}

// pageCursor reads one page at a time.
type pageCursor struct {
	ctx   context.Context
	pager *dynamodb.ScanPaginator
	kind  string
	scan  kv.Scan

	buf      []*kv.Record
	rec      *kv.Record
	returned int
	closed   bool
	err      error
}

func (c *pageCursor) Next() bool {
	c.rec = nil
	if c.err != nil || c.closed || (c.scan.Limit > 0 && c.returned >= c.scan.Limit) {
		return false
	}
	for len(c.buf) == 0 {
		if !c.pager.HasMorePages() {
			return false
		}
		page, err := c.pager.NextPage(c.ctx)
		if err != nil {
			c.err = fmt.Errorf("scan %s: %w", c.kind, mapError(err))
			return false
		}
		for _, item := range page.Items {
			rec, err := decodeItem(c.kind, item)
			if err != nil {
				c.err = err
				return false
			}
			if kv.MatchesAll(rec, c.scan.Predicates) {
				c.buf = append(c.buf, rec)
			}
		}
	}
	c.rec, c.buf = c.buf[0], c.buf[1:]
	c.returned++
	return true
}

func (c *pageCursor) Record() *kv.Record { return c.rec }
func (c *pageCursor) Err() error         { return c.err }

func (c *pageCursor) Close() error {
	c.closed = true
	c.buf = nil
	return nil
}

// segmentCursor runs a parallel scan on first use and then iterates its
// results in id order.
type segmentCursor struct {
	ctx   context.Context
	store *Store
	kind  string
	input *dynamodb.ScanInput
	scan  kv.Scan

	cur kv.Cursor
}

func (c *segmentCursor) Next() bool {
	if c.cur == nil {
		recs, err := c.store.parallelScan(c.ctx, c.kind, c.input, c.scan.Predicates)
		if err != nil {
			c.cur = kv.ErrCursor(err)
		} else {
			if c.scan.Limit > 0 && len(recs) > c.scan.Limit {
				recs = recs[:c.scan.Limit]
			}
			c.cur = kv.NewSliceCursor(recs)
		}
	}
	return c.cur.Next()
}

func (c *segmentCursor) Record() *kv.Record {
	if c.cur == nil {
		return nil
	}
	return c.cur.Record()
}

func (c *segmentCursor) Err() error {
	if c.cur == nil {
		return nil
	}
	return c.cur.Err()
}

func (c *segmentCursor) Close() error {
	if c.cur == nil {
		c.cur = kv.NewSliceCursor(nil)
	}
	return c.cur.Close()
}

// parallelScan reads every segment concurrently.
func (s *Store) parallelScan(ctx context.Context, kind string, base *dynamodb.ScanInput, preds []kv.Predicate) ([]*kv.Record, error) {
	segments := s.config.ScanSegments

	var mu sync.Mutex
	var all []*kv.Record
	var wg sync.WaitGroup
	errs := make(chan error, segments)

	for segment := 0; segment < segments; segment++ {
		wg.Add(1)
		go func(segment int) {
			defer wg.Done()

			input := *base
			input.Segment = aws.Int32(int32(segment))
			input.TotalSegments = aws.Int32(int32(segments))

			var found []*kv.Record
			paginator := dynamodb.NewScanPaginator(s.client, &input)
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					errs <- fmt.Errorf("scan %s segment %d: %w", kind, segment, mapError(err))
					return
				}
				for _, item := range page.Items {
					rec, err := decodeItem(kind, item)
					if err != nil {
						errs <- err
						return
					}
					if kv.MatchesAll(rec, preds) {
						found = append(found, rec)
					}
				}
			}

			mu.Lock()
			all = append(all, found...)
			mu.Unlock()
		}(segment)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Key.ID < all[j].Key.ID })
	return all, nil
}
