package scraper

// Selector tables for the map results page. Markup drift is absorbed by extending these lists.

var cardSelectors = []string{
	`a[data-cid]`,
	`div[role="article"]`,
	`div[data-result-index]`,
	`div.section-result`,
	`div.Nv2PK`,
	`a[aria-label][href*="/maps/place/"]`,
	`div[jsaction*="pane.focusResult"]`,
}

// cardLastResort is scanned and filtered by the identifier when no card selector matches.
const cardLastResort = `div[jsaction*="mouseover"]`

var containerSelectors = []string{
	`div[role="feed"]`,
	`div[role="main"]`,
}

var cookieConsentSelectors = []string{
	`#L2AGLb`,
	`button[aria-label*="Accept all"]`,
	`form[action*="consent"] button`,
}

// detailMarker signals that the detail view has rendered.
const detailMarker = `h1.DUwDvf`

var backSelectors = []string{
	`button[aria-label*="Back"]`,
	`button[jsaction*="back"]`,
}

// Detail view fields.

var detailName = Chain{Name: "name", Rule: nameRule, Locators: []Locator{
	{CSS: `h1.DUwDvf.lfPIob`},
	{CSS: `h1.fontHeadlineLarge`},
	{CSS: `h1[data-attrid="title"]`},
	{CSS: `h1`},
	{CSS: `.DUwDvf`},
	{CSS: `.lfPIob`},
}}

var detailAddress = Chain{Name: "address", Rule: addressRule, Locators: []Locator{
	{CSS: `button[data-item-id="address"] .Io6YTe`},
	{CSS: `button[data-item-id="address"]`},
	{CSS: `div[data-item-id="address"]`},
	{CSS: `.rogA2c .Io6YTe`},
	{CSS: `.rogA2c`},
	{CSS: `button[jsaction*="address"]`},
	{CSS: `button[data-item-id="address"]`, Attr: "aria-label", Rule: ariaAddressRule},
	{CSS: `div[aria-label*="Address"]`, Attr: "aria-label", Rule: ariaAddressRule},
	{CSS: `.CsEnBe[aria-label*="Address"]`, Attr: "aria-label", Rule: ariaAddressRule},
}}

var detailPhone = Chain{Name: "phone", Rule: phoneRule, Locators: []Locator{
	{CSS: `button[data-item-id^="phone"] .Io6YTe`},
	{CSS: `button[data-item-id^="phone"]`},
	{CSS: `div[data-item-id^="phone"]`},
	{CSS: `button[jsaction*="phone"]`},
	{CSS: `a[href^="tel:"]`, Attr: "href"},
	{CSS: `button[data-item-id^="phone"]`, Attr: "aria-label", Rule: ariaPhoneRule},
	{CSS: `div[aria-label*="Phone"]`, Attr: "aria-label", Rule: ariaPhoneRule},
	{CSS: `.CsEnBe[aria-label*="Phone"]`, Attr: "aria-label", Rule: ariaPhoneRule},
}}

var detailRating = Chain{Name: "rating", Rule: ratingRule, Locators: []Locator{
	{CSS: `div.F7nice span span[aria-hidden="true"]`},
	{CSS: `div.F7nice span[aria-hidden="true"]`},
	{CSS: `span[role="img"][aria-label*="star"]`, Attr: "aria-label"},
}}

var detailReviewCount = Chain{Name: "review_count", Rule: countRule, Locators: []Locator{
	{CSS: `div.F7nice span span span[aria-label]`, Attr: "aria-label"},
	{CSS: `div.F7nice span[aria-label*="review"]`, Attr: "aria-label"},
	{CSS: `button[aria-label*="reviews"]`, Attr: "aria-label"},
}}

var detailCategory = Chain{Name: "category", Rule: nameRule, Locators: []Locator{
	{CSS: `button[jsaction*="category"]`},
	{CSS: `.DkEaL`},
}}

// Result card fields.

var cardName = Chain{Name: "name", Rule: nameRule, Locators: []Locator{
	{CSS: `div[class*="fontHeadline"]`},
	{CSS: `span[class*="fontHeadline"]`},
	{CSS: `div[class*="fontDisplay"]`},
	{CSS: `a[aria-label]`, Attr: "aria-label"},
}}

var cardAddress = Chain{Name: "address", Rule: addressRule, Locators: []Locator{
	{CSS: `div[class*="address"]`},
	{CSS: `span[class*="address"]`},
}}

var cardPhone = Chain{Name: "phone", Rule: phoneRule, Locators: []Locator{
	{CSS: `span.UsdlK`},
	{CSS: `a[href^="tel:"]`, Attr: "href"},
}}

var cardRating = Chain{Name: "rating", Rule: ratingRule, Locators: []Locator{
	{CSS: `span[class*="MW4etd"]`},
	{CSS: `span[class*="ceNzKf"]`, Attr: "aria-label"},
	{CSS: `span[role="img"][aria-label*="star"]`, Attr: "aria-label"},
}}

var cardReviewCount = Chain{Name: "review_count", Rule: countRule, Locators: []Locator{
	{CSS: `span[class*="UY7F9"]`},
}}

var cardCategory = Chain{Name: "category", Rule: nameRule, Locators: []Locator{
	{CSS: `div.W4Efsd span:first-child > span`},
}}

var cardLink = Chain{Name: "link", Rule: placeLinkRule, Locators: []Locator{
	{CSS: `a[href*="/maps/place/"]`, Attr: "href"},
}}

// Reviews panel.

var reviewTriggers = []string{
	`button[aria-label*="reviews"]`,
	`button[aria-label*="Reviews"]`,
	`button[jsaction*="pane.reviewChart.moreReviews"]`,
	`button[role="tab"][aria-label*="Reviews"]`,
}

var reviewContainers = []string{
	`div[aria-label="Reviews"]`,
	`div.m6QErb.DxyBCb`,
	`div[role="main"] div.m6QErb`,
}

var showMoreReviews = []string{
	`button[aria-label*="Show more reviews"]`,
	`button[aria-label*="More reviews"]`,
	`button.w8nwRe`,
}

var reviewCards = []string{
	`div[data-review-id]`,
	`div.jftiEf`,
	`div[aria-label="User review"]`,
	`div[jscontroller="e6Mltc"]`,
}

var reviewAuthor = Chain{Name: "author", Locators: []Locator{
	{CSS: `div.KFi5wf span`},
	{CSS: `.TSUbDb .d4r55`},
	{CSS: `div[class*="d4r55"]`},
	{CSS: `div[class*="X5PpBb"] span`},
}}

var reviewRating = Chain{Name: "rating", Rule: ratingRule, Locators: []Locator{
	{CSS: `span[role="img"]`, Attr: "aria-label"},
	{CSS: `span[role="img"]`},
	{CSS: `span.kvMYJc`, Attr: "aria-label"},
	{CSS: `span.fzvQIb`},
	{CSS: `div.gws-localreviews__rating`},
}}

var reviewText = Chain{Name: "text", Locators: []Locator{
	{CSS: `span.wiI7pd`},
	{CSS: `.review-full-text`},
	{CSS: `.Jtu6Td`},
	{CSS: `div.MyEned span`},
}}

var reviewDate = Chain{Name: "date", Locators: []Locator{
	{CSS: `span.rsqaWe`},
	{CSS: `.dehysf`},
	{CSS: `span.xRkPPb`},
}}

var reviewImages = Chain{Name: "images", Rule: imageRule, Locators: []Locator{
	{CSS: `img[src^="https://"]`, Attr: "src"},
	{CSS: `button.Tya61d`, Attr: "style"},
}}

// Photo gallery.

var galleryTriggers = []string{
	`button[aria-label*="Photos"]`,
	`button[aria-label*="View photos"]`,
	`button[aria-label*="See photos"]`,
	`button[aria-label*="Gallery"]`,
	`button[jsaction*="pane.photoGallery"]`,
	`div[jsaction*="pane.photoGallery"]`,
}

var galleryContainers = []string{
	`div.m6QErb.DxyBCb`,
	`div[role="main"]`,
}

var placeImages = Chain{Name: "images", Rule: imageRule, Locators: []Locator{
	{CSS: `img[src^="https://"]`, Attr: "src"},
	{CSS: `div[role="img"].U39Pmb`, Attr: "style"},
	{CSS: `div[role="img"][style*="background-image"]`, Attr: "style"},
	{CSS: `a[data-photo-index] div[style*="background-image"]`, Attr: "style"},
}}

var placeVideos = Chain{Name: "videos", Locators: []Locator{
	{CSS: `video[src^="https://"]`, Attr: "src"},
	{CSS: `video source[src^="https://"]`, Attr: "src"},
}}
