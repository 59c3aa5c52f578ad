package gsm

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"

	"github.com/desain-gratis/attachment/utility/secretkv"
)

var _ secretkv.Provider = &gsmSecretProvider{}

type gsmSecretProvider struct {
	client    *secretmanager.Client
	projectID string
}

// New connects to Google Secret Manager using the ambient credentials.
// projectID may be the project number or name.
func New(ctx context.Context, projectID string) (*gsmSecretProvider, error) {
	client, err := secretmanager.NewRESTClient(ctx)
	if err != nil {
		log.Err(err).Msgf(`Unable to create Google Secret Manager (GSM) client.
	Make sure you configure your local development environment with the gcloud cli.`)
		return nil, err
	}

	return &gsmSecretProvider{
		client:    client,
		projectID: projectID,
	}, nil
}

func (g *gsmSecretProvider) Close() error {
	return g.client.Close()
}

func (g *gsmSecretProvider) Get(ctx context.Context, key string, version int) (secretkv.Payload, error) {
	sec, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: versionName(g.projectID, key, version),
	})
	if err != nil {
		return secretkv.Payload{}, err
	}

	key, version, err = getKeyAndVersion(sec.Name)
	if err != nil {
		return secretkv.Payload{}, err
	}

	return secretkv.Payload{
		Key:     key,
		Version: version,
		Payload: sec.GetPayload().GetData(),
		Meta: map[string]any{
			"sync_time": time.Now(),
		},
	}, nil
}

func (g *gsmSecretProvider) List(ctx context.Context, key string) ([]secretkv.Payload, error) {
	iter := g.client.ListSecretVersions(ctx, &secretmanagerpb.ListSecretVersionsRequest{
		Parent: "projects/" + g.projectID + "/secrets/" + key,
	})

	var versions []secretkv.Payload
	for {
		data, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Err(err).Msgf("Failed to get data for secret in %v name: %v", g.projectID, key)
			return versions, err
		}

		// Filter out non enabled keys
		if data.State != secretmanagerpb.SecretVersion_ENABLED {
			continue
		}

		key, version, err := getKeyAndVersion(data.Name)
		if err != nil {
			log.Warn().Msgf("Failed to parse GSM secret in %v name: %v", g.projectID, data.Name)
			continue
		}

		payload, err := g.Get(ctx, key, version)
		if err != nil {
			log.Warn().Msgf("Failed to get individual secret in %v name: %v version: %v err: %v", g.projectID, key, version, err)
			continue
		}

		payload.CreatedAt = data.CreateTime.AsTime()
		versions = append(versions, payload)
	}

	return versions, nil
}

func versionName(projectID, key string, version int) string {
	versionText := "latest"
	if version > 0 {
		versionText = strconv.Itoa(version)
	}
	return "projects/" + projectID + "/secrets/" + key + "/versions/" + versionText
}

func getKeyAndVersion(fullName string) (string, int, error) {
	token := strings.Split(fullName, "/")
	if len(token) < 3 {
		return "", 0, errors.New("Error parsing secret name")
	}
	version, err := strconv.Atoi(token[len(token)-1])
	if err != nil {
		return "", 0, err
	}

	key := token[len(token)-3]

	return key, version, nil
}
