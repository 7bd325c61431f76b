package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out    *ssm.GetParameterOutput
	err    error
	lastIn *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.out, f.err
}

func secureParam(value string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  aws.String("p"),
		Value: aws.String(value),
		Type:  types.ParameterTypeSecureString,
	}}
}

func mustNewReader(t *testing.T, api *fakeSSM) *Reader {
	t.Helper()
	r, err := NewReader(api)
	require.NoError(t, err)
	return r
}

func TestReader_DecryptsSecureString(t *testing.T) {
	api := &fakeSSM{out: secureParam(`{"token":"v"}`)}
	v, err := mustNewReader(t, api).GetParameter(context.Background(), " /chat/open-ai-token ")
	require.NoError(t, err)
	require.Equal(t, `{"token":"v"}`, v)
	require.Equal(t, "/chat/open-ai-token", aws.ToString(api.lastIn.Name))
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestReader_RefusesPlainString(t *testing.T) {
	out := secureParam("sk-plain")
	out.Parameter.Type = types.ParameterTypeString
	_, err := mustNewReader(t, &fakeSSM{out: out}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "want SecureString")
}

func TestReader_MissingValue(t *testing.T) {
	for name, out := range map[string]*ssm.GetParameterOutput{
		"nil output":    nil,
		"nil parameter": {},
		"nil value":     {Parameter: &types.Parameter{Name: aws.String("p")}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := mustNewReader(t, &fakeSSM{out: out}).GetParameter(context.Background(), "p")
			require.ErrorContains(t, err, "no value")
		})
	}
}

func TestReader_APIError(t *testing.T) {
	_, err := mustNewReader(t, &fakeSSM{err: errors.New("boom")}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestReader_Validation(t *testing.T) {
	_, err := NewReader(nil)
	require.ErrorIs(t, err, errNoAPI)

	_, err = (&Reader{}).GetParameter(context.Background(), "p")
	require.ErrorIs(t, err, errNoAPI)

	api := &fakeSSM{}
	_, err = mustNewReader(t, api).GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "name is empty")
	require.Nil(t, api.lastIn)
}
