// Package paramstore serves the completion-service token from AWS SSM
// Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

var errNoAPI = errors.New("paramstore: reader has no SSM api")

type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter returns the plaintext of one secret parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Reader reads SecureString parameters with decryption. Parameters of any
// other type are refused so a token never sits in plain String storage.
type Reader struct {
	api ssmAPI
}

func NewReader(api ssmAPI) (*Reader, error) {
	if api == nil {
		return nil, errNoAPI
	}
	return &Reader{api: api}, nil
}

func (r *Reader) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case r == nil || r.api == nil:
		return "", errNoAPI
	case name == "":
		return "", errors.New("paramstore: parameter name is empty")
	}

	out, err := r.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: read %s: %w", name, err)
	}

	var p *types.Parameter
	if out != nil {
		p = out.Parameter
	}
	if p == nil || p.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has no value", name)
	}
	if p.Type != "" && p.Type != types.ParameterTypeSecureString {
		return "", fmt.Errorf("paramstore: parameter %q is %s, want SecureString", name, p.Type)
	}
	return aws.ToString(p.Value), nil
}
