package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/comings/prepaid-api/internal/core/domain"
)

// ErrOAuthFailed covers token exchange and profile lookup failures.
var ErrOAuthFailed = errors.New("social login failed")

// OAuthEndpoints lets tests point providers at a local server.
type OAuthEndpoints struct {
	AuthorizeURL string
	TokenURL     string
	ProfileURL   string
}

var (
	NaverEndpoints = OAuthEndpoints{
		AuthorizeURL: "https://nid.naver.com/oauth2.0/authorize",
		TokenURL:     "https://nid.naver.com/oauth2.0/token",
		ProfileURL:   "https://openapi.naver.com/v1/nid/me",
	}
	KakaoEndpoints = OAuthEndpoints{
		AuthorizeURL: "https://kauth.kakao.com/oauth/authorize",
		TokenURL:     "https://kauth.kakao.com/oauth/token",
		ProfileURL:   "https://kapi.kakao.com/v2/user/me",
	}
)

type oauthClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	endpoints    OAuthEndpoints
	http         *http.Client
}

func (c oauthClient) exchangeToken(ctx context.Context, code, state string) (string, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {c.clientID},
		"redirect_uri": {c.redirectURI},
		"code":         {code},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	if state != "" {
		form.Set("state", state)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := send(c.http, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOAuthFailed, err)
	}
	token := gjson.GetBytes(body, "access_token").String()
	if status != http.StatusOK || token == "" {
		return "", fmt.Errorf("%w: token exchange http %d", ErrOAuthFailed, status)
	}
	return token, nil
}

func (c oauthClient) profile(ctx context.Context, accessToken string) ([]byte, error) {
	status, body, err := doJSON(ctx, c.http, http.MethodGet, c.endpoints.ProfileURL, nil,
		map[string]string{"Authorization": "Bearer " + accessToken})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthFailed, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: profile http %d", ErrOAuthFailed, status)
	}
	return body, nil
}

type NaverProvider struct {
	oauthClient
}

func NewNaverProvider(clientID, clientSecret, redirectURI string, endpoints OAuthEndpoints, client *http.Client) *NaverProvider {
	if client == nil {
		client = NewHTTPClient(10 * time.Second)
	}
	return &NaverProvider{oauthClient{clientID, clientSecret, redirectURI, endpoints, client}}
}

func (p *NaverProvider) Name() domain.SocialProvider { return domain.ProviderNaver }

func (p *NaverProvider) AuthorizeURL(state string) string {
	if state == "" {
		state = string(domain.ProviderNaver)
	}
	q := url.Values{
		"client_id":     {p.clientID},
		"redirect_uri":  {p.redirectURI},
		"response_type": {"code"},
		"state":         {state},
	}
	return p.endpoints.AuthorizeURL + "?" + q.Encode()
}

func (p *NaverProvider) Exchange(ctx context.Context, code, state string) (domain.SocialIdentity, error) {
	token, err := p.exchangeToken(ctx, code, state)
	if err != nil {
		return domain.SocialIdentity{}, err
	}
	body, err := p.profile(ctx, token)
	if err != nil {
		return domain.SocialIdentity{}, err
	}
	if gjson.GetBytes(body, "resultcode").String() != "00" {
		return domain.SocialIdentity{}, fmt.Errorf("%w: naver profile rejected", ErrOAuthFailed)
	}

	id := gjson.GetBytes(body, "response.id").String()
	if id == "" {
		return domain.SocialIdentity{}, fmt.Errorf("%w: naver profile has no id", ErrOAuthFailed)
	}
	return domain.SocialIdentity{
		Provider:       domain.ProviderNaver,
		ProviderUserID: id,
		Email:          gjson.GetBytes(body, "response.email").String(),
		Name:           gjson.GetBytes(body, "response.name").String(),
	}, nil
}

type KakaoProvider struct {
	oauthClient
}

func NewKakaoProvider(clientID, clientSecret, redirectURI string, endpoints OAuthEndpoints, client *http.Client) *KakaoProvider {
	if client == nil {
		client = NewHTTPClient(10 * time.Second)
	}
	return &KakaoProvider{oauthClient{clientID, clientSecret, redirectURI, endpoints, client}}
}

func (p *KakaoProvider) Name() domain.SocialProvider { return domain.ProviderKakao }

func (p *KakaoProvider) AuthorizeURL(state string) string {
	q := url.Values{
		"client_id":     {p.clientID},
		"redirect_uri":  {p.redirectURI},
		"response_type": {"code"},
	}
	if state != "" {
		q.Set("state", state)
	}
	return p.endpoints.AuthorizeURL + "?" + q.Encode()
}

func (p *KakaoProvider) Exchange(ctx context.Context, code, state string) (domain.SocialIdentity, error) {
	token, err := p.exchangeToken(ctx, code, "")
	if err != nil {
		return domain.SocialIdentity{}, err
	}
	body, err := p.profile(ctx, token)
	if err != nil {
		return domain.SocialIdentity{}, err
	}

	id := gjson.GetBytes(body, "id")
	if !id.Exists() {
		return domain.SocialIdentity{}, fmt.Errorf("%w: kakao profile has no id", ErrOAuthFailed)
	}
	return domain.SocialIdentity{
		Provider:       domain.ProviderKakao,
		ProviderUserID: id.String(),
		Email:          gjson.GetBytes(body, "kakao_account.email").String(),
		Name:           gjson.GetBytes(body, "kakao_account.profile.nickname").String(),
	}, nil
}
