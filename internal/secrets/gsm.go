package secrets

import (
	"context"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

type gsmClient struct {
	c *secretmanager.Client
}

// DialSecretManager returns a Dialer backed by the Secret Manager gRPC client.
func DialSecretManager(opts ...option.ClientOption) Dialer {
	return func(ctx context.Context) (Client, error) {
		c, err := secretmanager.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return &gsmClient{c: c}, nil
	}
}

func (g *gsmClient) Access(ctx context.Context, name string) ([]byte, error) {
	resp, err := g.c.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return resp.GetPayload().GetData(), nil
}

func (g *gsmClient) CreateSecret(ctx context.Context, projectID, secretID string) error {
	_, err := g.c.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + projectID,
		SecretId: secretID,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	return err
}

func (g *gsmClient) AddVersion(ctx context.Context, secret string, value []byte) error {
	_, err := g.c.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  secret,
		Payload: &secretmanagerpb.SecretPayload{Data: value},
	})
	return err
}

func (g *gsmClient) Close() error { return g.c.Close() }
