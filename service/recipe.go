package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"

	"souschef/model"
)

const maxImportBytes = 2 << 20

type RecipeService struct {
	DB     *gorm.DB
	Mailer Mailer
	// HTTPClient fetches pages for Import. When nil, a client that only
	// connects to public addresses is used.
	HTTPClient *http.Client
}

var recipeRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

func (s *RecipeService) List(ctx context.Context, userID string) ([]model.Recipe, error) {
	return model.FindRecipesByUserID(s.DB.WithContext(ctx), userID)
}

func (s *RecipeService) Get(ctx context.Context, userID, recipeID string) (*model.Recipe, error) {
	recipe, err := model.FindRecipeByIDAndUserID(s.DB.WithContext(ctx), recipeID, userID)
	if err != nil {
		return nil, notFoundOr(err, "failed to get recipe")
	}
	return recipe, nil
}

// Create stores a recipe and its first snapshot. id is optional.
func (s *RecipeService) Create(ctx context.Context, userID, id, title, content string) (*model.Recipe, error) {
	if err := validateTitle("title", title); err != nil {
		return nil, err
	}
	if id != "" {
		if err := validateID("id", id); err != nil {
			return nil, err
		}
	}
	recipe := &model.Recipe{ID: id, UserID: userID, Title: title, Content: content}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := model.CreateRecipe(tx, recipe); err != nil {
			return err
		}
		return model.CreateRecipeSnapshot(tx, &model.RecipeSnapshot{RecipeID: recipe.ID, Content: content})
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

// Update changes the title and/or content of an owned recipe. A content
// change records a snapshot with no chat attached.
func (s *RecipeService) Update(ctx context.Context, userID, recipeID string, title, content *string) (*model.Recipe, error) {
	if title != nil {
		if err := validateTitle("title", *title); err != nil {
			return nil, err
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := model.FindRecipeByIDAndUserID(tx, recipeID, userID)
		if err != nil {
			return notFoundOr(err, "failed to get recipe")
		}
		newTitle, newContent := "", ""
		if title != nil {
			newTitle = *title
		}
		if content != nil && *content != current.Content {
			newContent = *content
		}
		if _, err := model.UpdateRecipe(tx, recipeID, userID, newTitle, newContent); err != nil {
			return err
		}
		if newContent != "" {
			return model.CreateRecipeSnapshot(tx, &model.RecipeSnapshot{RecipeID: recipeID, Content: newContent})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, recipeID)
}

// Delete removes the recipe; it disappears from every chat it was active in.
func (s *RecipeService) Delete(ctx context.Context, userID, recipeID string) error {
	rows, err := model.DeleteRecipe(s.DB.WithContext(ctx), recipeID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RecipeService) Snapshots(ctx context.Context, userID, recipeID string) ([]model.RecipeSnapshot, error) {
	db := s.DB.WithContext(ctx)
	if err := RequireRecipe(db, userID, recipeID); err != nil {
		return nil, err
	}
	return model.FindSnapshotsByRecipeID(db, recipeID)
}

// RenderHTML renders an owned recipe's markdown.
func (s *RecipeService) RenderHTML(ctx context.Context, userID, recipeID string) (string, error) {
	recipe, err := s.Get(ctx, userID, recipeID)
	if err != nil {
		return "", err
	}
	return renderMarkdown(recipe.Content)
}

func renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := recipeRenderer.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render recipe: %w", err)
	}
	return buf.String(), nil
}

// Import fetches a web page, converts it to markdown and saves it as a
// recipe titled after the page's first heading.
func (s *RecipeService) Import(ctx context.Context, userID, pageURL string) (*model.Recipe, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, NewValidationError("url", "Please enter a valid http(s) URL")
	}

	content, err := s.fetchMarkdown(ctx, u.String())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("url", "The page has no readable content")
	}

	title := FirstHeading(content)
	if title == "" {
		title = u.Host
	}
	if len([]rune(title)) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return s.Create(ctx, userID, "", title, content)
}

func (s *RecipeService) fetchMarkdown(ctx context.Context, pageURL string) (string, error) {
	client := s.HTTPClient
	if client == nil {
		client = importClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	res, err := client.Do(req)
	if errors.Is(err, errBlockedAddress) {
		logger.Warnf("refused to import %s: %s", pageURL, err)
		return "", NewValidationError("url", "This address cannot be imported")
	}
	if err != nil {
		return "", NewValidationError("url", "Could not fetch the page")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", NewValidationError("url", fmt.Sprintf("The page returned status %d", res.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxImportBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	content, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to convert page to markdown: %w", err)
	}
	return content, nil
}

var errBlockedAddress = errors.New("address is not public")

var importClient = newImportClient()

// newImportClient checks every dialed address after DNS resolution, so
// redirects and rebinding hosts cannot reach internal services.
func newImportClient() *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: refuseNonPublic}
	return &http.Client{
		Timeout: 20 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to %s: %w", req.URL.Scheme, errBlockedAddress)
			}
			return nil
		},
	}
}

func refuseNonPublic(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%s: %w", host, errBlockedAddress)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

// FirstHeading returns the text of the first markdown heading, or "".
func FirstHeading(content string) string {
	doc := markdown.Parse([]byte(content), parser.NewWithExtensions(parser.CommonExtensions))

	var title string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		heading, ok := node.(*ast.Heading)
		if !ok || !entering {
			return ast.GoToNext
		}
		var b strings.Builder
		ast.WalkFunc(heading, func(child ast.Node, entering bool) ast.WalkStatus {
			if leaf := child.AsLeaf(); entering && leaf != nil {
				b.Write(leaf.Literal)
			}
			return ast.GoToNext
		})
		title = strings.TrimSpace(b.String())
		return ast.Terminate
	})
	return title
}

// Share e-mails an owned recipe to someone.
func (s *RecipeService) Share(ctx context.Context, userID, recipeID, to string) error {
	recipe, err := s.Get(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	html, err := renderMarkdown(recipe.Content)
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(to, "Recipe: "+recipe.Title, recipe.Content, html); err != nil {
		return err
	}
	logger.Infof("recipe %s shared by user %s", recipe.ID, userID)
	return nil
}
