// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	eszip "github.com/eszip-go/eszip"
)

func loadArchive(ctx context.Context, path string) (*eszip.EszipUnion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loadArchiveFromReader(ctx, f)
}

func loadArchiveFromReader(ctx context.Context, r io.Reader) (*eszip.EszipUnion, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return eszip.ParseBytes(ctx, data)
}

func specifierToPath(specifier string) string {
	path := specifier
	for _, prefix := range []string{"file:///", "file://", "https://", "http://"} {
		if after, found := strings.CutPrefix(path, prefix); found {
			path = after
			break
		}
	}
	path = strings.TrimPrefix(path, "/")
	return path
}
