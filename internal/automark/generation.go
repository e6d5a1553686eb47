package automark

import (
	"context"
	"net/url"
)

// GenerateTextAd asks the backend for ad copy.
func (c *Client) GenerateTextAd(ctx context.Context, req AdRequest) (TextAd, error) {
	body, err := c.postJSON(ctx, "/generate-ad/", req)
	if err != nil {
		return TextAd{}, err
	}
	var ad TextAd
	if err := decode(body, &ad, field{"ad_text", kindString}); err != nil {
		return TextAd{}, err
	}
	return ad, nil
}

// GenerateImageAd asks the backend for ad copy plus a rendered image. The
// returned ImageURL points at the backend's generated_ads directory.
func (c *Client) GenerateImageAd(ctx context.Context, req AdRequest) (ImageAd, error) {
	body, err := c.postJSON(ctx, "/generate-visual-ad/", req)
	if err != nil {
		return ImageAd{}, err
	}
	var ad ImageAd
	if err := decode(body, &ad,
		field{"image_name", kindString},
		field{"ad_text", kindString},
	); err != nil {
		return ImageAd{}, err
	}
	ad.ImageURL = c.ImageURL(ad.ImageName)
	return ad, nil
}

// ImageURL builds the public URL of a generated image.
func (c *Client) ImageURL(imageName string) string {
	return c.baseURL + "/generated_ads/" + url.PathEscape(imageName)
}

// EnhanceImage uploads a product photo and gets back an enhanced image with
// ad copy overlaid.
func (c *Client) EnhanceImage(ctx context.Context, req AdRequest, up Upload) (ImageAd, error) {
	body, err := c.postMultipart(ctx, "/process_image_enhancement/",
		[][2]string{
			{"product_name", req.ProductName},
			{"description", req.Description},
		},
		&formFile{field: "file", name: up.Filename, ctype: up.ContentType, data: up.Data},
	)
	if err != nil {
		return ImageAd{}, err
	}
	var ad ImageAd
	if err := decode(body, &ad,
		field{"image_url", kindString},
		field{"ad_text", kindString},
	); err != nil {
		return ImageAd{}, err
	}
	ad.ImageURL = c.ResolveURL(ad.ImageURL)
	return ad, nil
}
