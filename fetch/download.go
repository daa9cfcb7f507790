package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// download stores the object at location in a temporary file inside dir.
func (f *Fetcher) download(ctx context.Context, location, dir string) (string, error) {
	body, err := f.open(ctx, location)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, "download-*")
	if err != nil {
		return "", errors.WithStack(err)
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "downloading %s", location)
	}
	f.logger().Info("downloaded dataset", "location", location, "size", humanize.Bytes(uint64(n)))
	return tmp.Name(), nil
}

func (f *Fetcher) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "s3://") {
		return f.openS3(ctx, location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "bad url %s", location)
	}
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", location)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetching %s: unexpected status %s", location, resp.Status)
	}
	return resp.Body, nil
}

func (f *Fetcher) openS3(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := parseS3(location)
	if err != nil {
		return nil, err
	}
	client := f.S3
	if client == nil {
		client, err = newS3()
		if err != nil {
			return nil, err
		}
	}
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", location)
	}
	return out.Body, nil
}

func newS3() (*s3.S3, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	sess, err := session.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return s3.New(sess, aws.NewConfig().WithRegion(region)), nil
}

func parseS3(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.Wrapf(err, "bad s3 uri %s", location)
	}
	bucket, key = u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.Errorf("bad s3 uri %s: want s3://bucket/key", location)
	}
	return bucket, key, nil
}

// nameOf returns the file name part of location, used to detect the archive format.
func nameOf(location string) string {
	if IsRemote(location) {
		if u, err := url.Parse(location); err == nil {
			return path.Base(u.Path)
		}
	}
	return path.Base(strings.ReplaceAll(location, "\\", "/"))
}
